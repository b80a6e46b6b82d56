package bus

// MessageKind discriminates inbound chat events.
type MessageKind string

const (
	KindStart MessageKind = "start"
	KindText  MessageKind = "text"
	KindPhoto MessageKind = "photo"
)

// PhotoRef is one resolution variant of an inbound photo. FileID is resolved
// to a fetchable URL through the originating channel.
type PhotoRef struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size,omitempty"`
}

type InboundMessage struct {
	Kind     MessageKind       `json:"kind"`
	Channel  string            `json:"channel"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content,omitempty"`
	Photos   []PhotoRef        `json:"photos,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// LargestPhoto returns the variant with the most pixels. Later variants win
// ties, so an ascending list yields its last element.
func (m InboundMessage) LargestPhoto() (PhotoRef, bool) {
	if len(m.Photos) == 0 {
		return PhotoRef{}, false
	}

	best := m.Photos[0]
	for _, photo := range m.Photos[1:] {
		if photo.Width*photo.Height >= best.Width*best.Height {
			best = photo
		}
	}

	return best, true
}
