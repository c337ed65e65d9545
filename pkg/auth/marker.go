package auth

import "net/http"

// SubmittedCookieName marks a browser session that has just published an update.
const SubmittedCookieName = "valley_submitted"

// SubmittedMarkerMaxAge is the marker lifetime in seconds.
const SubmittedMarkerMaxAge = 3600

// SetSubmittedMarker sets
// "valley_submitted=true; Path=/; Max-Age=3600; SameSite=Lax".
func SetSubmittedMarker(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SubmittedCookieName,
		Value:    "true",
		Path:     "/",
		MaxAge:   SubmittedMarkerMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
}

// HasSubmittedMarker reports whether the request carries the marker.
func HasSubmittedMarker(r *http.Request) bool {
	c, err := r.Cookie(SubmittedCookieName)
	return err == nil && c.Value == "true"
}
