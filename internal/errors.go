package frontpage

import "errors"

// Sentinel errors for the frontpage domain.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrBadRequest    = errors.New("bad request")
	ErrOffline       = errors.New("offline")
	ErrMisdirected   = errors.New("request for another origin")
	ErrUpstream      = errors.New("upstream error")
	ErrCircuitOpen   = errors.New("circuit open")
	ErrNotActive     = errors.New("offline cache not active")
	ErrInstallFailed = errors.New("offline cache install failed")
)
