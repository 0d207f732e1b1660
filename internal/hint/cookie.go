package hint

// Cookie names used on the wire. CookieName carries the signed token; the
// legacy cookies carried plaintext identity in an earlier protocol version
// and are force-expired on every sync and clear.
const (
	CookieName       = "vv_hint"
	LegacyUIDCookie  = "vv_uid"
	LegacyPlanCookie = "vv_plan"
)
