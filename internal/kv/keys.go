package kv

// Key layout. Every durable record and derived index lives under one of these.
const (
	KeyBeatsIndex  = "beats:index"
	KeyFeedIndex   = "signals:feed-index"
	KeyBriefsIndex = "briefs:index"
	KeyBountyIndex = "bounties:index"
)

func BeatKey(slug string) string         { return "beat:" + slug }
func SignalKey(id string) string         { return "signal:" + id }
func AgentSignalsKey(addr string) string { return "signals:agent:" + addr }
func BeatSignalsKey(slug string) string  { return "signals:beat:" + slug }
func TagSignalsKey(tag string) string    { return "signals:tag:" + tag }
func StreakKey(addr string) string       { return "streak:" + addr }
func BriefKey(date string) string        { return "brief:" + date }
func EarningsKey(addr string) string     { return "earnings:" + addr }
func PaymentKey(txid string) string      { return "payment:" + txid }
func BountyKey(id string) string         { return "bounty:" + id }
func BountyClaimsKey(id string) string   { return "bounty:" + id + ":claims" }
func CreatorBountiesKey(addr string) string {
	return "bounties:creator:" + addr
}
func BeatBountiesKey(slug string) string { return "bounties:beat:" + slug }

// RateLimitKey scopes a fixed-window counter to an action and caller.
func RateLimitKey(action, caller string) string {
	return "ratelimit:" + action + ":" + caller
}
