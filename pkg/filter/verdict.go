package filter

// Verdict is the outcome of running one message through the pipeline.
type Verdict int

const (
	Forward Verdict = iota
	DropSelfEcho
	DropStatusSync
	DropNonUser
	DropAtAll
	DropExpired
)

var verdictNames = [...]string{
	Forward:        "forward",
	DropSelfEcho:   "drop_self_echo",
	DropStatusSync: "drop_status_sync",
	DropNonUser:    "drop_non_user",
	DropAtAll:      "drop_at_all",
	DropExpired:    "drop_expired",
}

func (v Verdict) String() string {
	if v < 0 || int(v) >= len(verdictNames) {
		return "unknown"
	}
	return verdictNames[v]
}

// Forwarded reports whether the message should reach the bot.
func (v Verdict) Forwarded() bool {
	return v == Forward
}
