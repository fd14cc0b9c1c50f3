package cache

const (
	limitText     = "Byl dosažen limit stahování z Titulky.com. Zkuste to prosím později."
	limitFileName = "limit.vtt"
)

// LimitCue is the placeholder served when the site refuses a download. It
// spans the first ten minutes of playback.
const LimitCue = "WEBVTT\n\n00:00:00.000 --> 00:10:00.000\n" + limitText + "\n\n"

// LimitPlain is LimitCue for clients that want SRT.
const LimitPlain = "1\n00:00:00,000 --> 00:10:00,000\n" + limitText + "\n\n"
