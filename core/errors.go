package core

import "errors"

// Configuration errors indicate a setup defect and are surfaced directly to
// the caller of the triggering operation. Everything transient (network
// failures, unsolved challenges, missing collaborators) stays inside the
// escalation ladder.
var (
	ErrUnknownProfile  = errors.New("unknown identity profile")
	ErrUnknownProvider = errors.New("unknown captcha provider")
	ErrNoAPIKey        = errors.New("captcha provider requires an api key")
	ErrSolverMissing   = errors.New("jsd solver binary not available")
	ErrBrowserFailed   = errors.New("browser fetch failed")
)
