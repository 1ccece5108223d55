package middleware

import "net/http"

// CrossOrigin rejects state-changing requests sent by a browser on behalf of
// another site, such as a hidden form posting to /login or /account.
//
// Browsers label every request with Sec-Fetch-Site (or, older ones, Origin);
// a POST whose label says it came from elsewhere is answered by deny.
// GET, HEAD and OPTIONS pass, as do requests without either header, which
// only non-browser clients send.
func CrossOrigin(deny http.Handler) func(http.Handler) http.Handler {
	protection := http.NewCrossOriginProtection()
	if deny != nil {
		protection.SetDenyHandler(deny)
	}
	return protection.Handler
}
