package marketdata

import "errors"

// ErrNoData indicates the provider completed the request but returned zero
// bars for the symbol in the requested range. Maps to 404 at the HTTP
// boundary.
var ErrNoData = errors.New("no bar data for symbol")

// ErrUpstream indicates the provider request could not be completed after
// retries (timeouts, rate limiting, 5xx). Maps to 502 at the HTTP boundary.
var ErrUpstream = errors.New("market data request failed")
