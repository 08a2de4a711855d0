// Package mockhlr serves a stand-in for the HLR lookup form: a page whose
// controls start disabled and whose result container fills in asynchronously.
package mockhlr

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"
)

const FormPath = "/cek-hlr-lokasi-hp.html"

// Call records a request made to the mock target.
type Call struct {
	Method string
	Path   string
}

// Responder returns the result text shown for a submitted number.
type Responder func(msisdn string) string

// Options shape how the page behaves.
type Options struct {
	// UnlockDelay is how long the page keeps #msisdn and #find disabled.
	UnlockDelay time.Duration
	// ResultDelay is how long after the answer arrives before it is shown.
	ResultDelay time.Duration
	// Challenge serves an anti-bot interstitial instead of the form.
	Challenge bool
	// Respond overrides DefaultResponder.
	Respond Responder
}

// Server implements the mock target.
type Server struct {
	opts Options

	mu      sync.Mutex
	calls   []Call
	lookups []string
}

func New(opts Options) *Server {
	if opts.Respond == nil {
		opts.Respond = DefaultResponder
	}
	return &Server{opts: opts}
}

// Handler returns an http.Handler that serves the mock target.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleForm)
	mux.HandleFunc("/api/lookup.js", s.handleLookup)
	mux.HandleFunc("/api/lookups", s.handleLookups)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Lookups returns every number submitted so far, in order.
func (s *Server) Lookups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lookups))
	copy(out, s.lookups)
	return out
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != "/" && r.URL.Path != FormPath {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if s.opts.Challenge {
		w.WriteHeader(http.StatusForbidden)
		_ = challengePage.Execute(w, nil)
		return
	}
	_ = formPage.Execute(w, map[string]int64{
		"UnlockDelayMS": s.opts.UnlockDelay.Milliseconds(),
		"ResultDelayMS": s.opts.ResultDelay.Milliseconds(),
	})
}

// handleLookup answers as a script so the page works with only document and
// script requests allowed.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	msisdn := strings.TrimSpace(r.URL.Query().Get("msisdn"))
	s.mu.Lock()
	s.lookups = append(s.lookups, msisdn)
	s.mu.Unlock()

	text, err := json.Marshal(s.opts.Respond(msisdn))
	if err != nil {
		http.Error(w, "encode result", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte("window.hlrResult(" + string(text) + ");\n"))
}

func (s *Server) handleLookups(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"lookups": s.Lookups()})
}

var formPage = template.Must(template.New("form").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Cek HLR Lokasi HP</title></head>
<body>
<section class="content-header"><h1>Cek HLR Lokasi HP</h1></section>
<form id="hlr" onsubmit="return false">
  <input id="msisdn" name="msisdn" type="text" disabled>
  <button id="find" type="button" disabled>Cek</button>
</form>
<pre class="message"></pre>
<script>
(function () {
  var input = document.getElementById('msisdn');
  var button = document.getElementById('find');
  var out = document.querySelector('pre.message');
  setTimeout(function () {
    input.disabled = false;
    button.disabled = false;
  }, {{.UnlockDelayMS}});
  window.hlrResult = function (text) {
    setTimeout(function () { out.innerText = text; }, {{.ResultDelayMS}});
  };
  button.addEventListener('click', function () {
    out.innerText = '';
    var s = document.createElement('script');
    s.src = '/api/lookup.js?msisdn=' + encodeURIComponent(input.value) + '&t=' + Date.now();
    document.body.appendChild(s);
  });
})();
</script>
</body>
</html>
`))

var challengePage = template.Must(template.New("challenge").Parse(`<!doctype html>
<html>
<head><title>Just a moment...</title></head>
<body>
<div id="challenge-running">Checking your browser before accessing the site.</div>
<form id="challenge-form" action="/" method="POST"></form>
</body>
</html>
`))
