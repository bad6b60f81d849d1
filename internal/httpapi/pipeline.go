package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// Rejection halts a pipeline and describes the error response.
type Rejection struct {
	Status int
	// Code is the stable error identifier written as "error".
	Code string
	// Reason optionally refines Code, e.g. the token rejection class.
	Reason     string
	RetryAfter time.Duration
	// Challenge is sent as WWW-Authenticate when set.
	Challenge string
}

// Stage is one gate in a request pipeline. It either returns the request to
// pass on (possibly with an enriched context) or a rejection.
type Stage func(w http.ResponseWriter, r *http.Request) (*http.Request, *Rejection)

// Pipeline runs stages in order; the first rejection ends the request.
type Pipeline []Stage

// Chain builds a pipeline from stages, skipping nil entries.
func Chain(stages ...Stage) Pipeline {
	p := make(Pipeline, 0, len(stages))
	for _, s := range stages {
		if s != nil {
			p = append(p, s)
		}
	}
	return p
}

// With returns a new pipeline with extra stages appended.
func (p Pipeline) With(stages ...Stage) Pipeline {
	out := make(Pipeline, 0, len(p)+len(stages))
	out = append(out, p...)
	return append(out, Chain(stages...)...)
}

// Then wraps h so it runs only after every stage accepts the request.
func (p Pipeline) Then(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, stage := range p {
			next, rej := stage(w, r)
			if rej != nil {
				writeRejection(w, r, rej)
				return
			}
			if next != nil {
				r = next
			}
		}
		h.ServeHTTP(w, r)
	})
}

// ThenFunc is Then for plain handler functions.
func (p Pipeline) ThenFunc(fn http.HandlerFunc) http.Handler {
	return p.Then(fn)
}

func writeRejection(w http.ResponseWriter, r *http.Request, rej *Rejection) {
	if rej.Challenge != "" {
		w.Header().Set("WWW-Authenticate", rej.Challenge)
	}
	if rej.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rej.RetryAfter)))
	}
	writeErrorBody(w, r, rej.Status, errorBody{Error: rej.Code, Reason: rej.Reason})
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
