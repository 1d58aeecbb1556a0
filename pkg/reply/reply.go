// Package reply defines the replies the bot can hand back to a channel.
// The set is closed: Reply can only be implemented inside this package.
package reply

// Reply is one of Text, Error, Info, Voice, ImageURL, Image or VideoURL.
type Reply interface {
	Kind() Kind
	isReply()
}

type Kind string

const (
	KindText     Kind = "text"
	KindError    Kind = "error"
	KindInfo     Kind = "info"
	KindVoice    Kind = "voice"
	KindImageURL Kind = "image_url"
	KindImage    Kind = "image"
	KindVideoURL Kind = "video_url"
)

type Text struct{ Content string }

type Error struct{ Content string }

type Info struct{ Content string }

// Voice points at a local audio file.
type Voice struct{ Path string }

type ImageURL struct{ URL string }

// Image carries encoded image bytes.
type Image struct{ Data []byte }

type VideoURL struct{ URL string }

func (Text) Kind() Kind     { return KindText }
func (Error) Kind() Kind    { return KindError }
func (Info) Kind() Kind     { return KindInfo }
func (Voice) Kind() Kind    { return KindVoice }
func (ImageURL) Kind() Kind { return KindImageURL }
func (Image) Kind() Kind    { return KindImage }
func (VideoURL) Kind() Kind { return KindVideoURL }

func (Text) isReply()     {}
func (Error) isReply()    {}
func (Info) isReply()     {}
func (Voice) isReply()    {}
func (ImageURL) isReply() {}
func (Image) isReply()    {}
func (VideoURL) isReply() {}

// TextContent returns the content of a textual reply.
func TextContent(r Reply) (string, bool) {
	switch v := r.(type) {
	case Text:
		return v.Content, true
	case Error:
		return v.Content, true
	case Info:
		return v.Content, true
	default:
		return "", false
	}
}
