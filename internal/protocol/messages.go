// ABOUTME: Agent channel message type definitions
// ABOUTME: One flat JSON envelope with a type tag, shared by both directions
package protocol

import "encoding/json"

// Message types sent from the client to the agent.
const (
	TypeAudioChunk          = "audio_chunk"
	TypeUserStoppedSpeaking = "user_stopped_speaking"
	TypeBargeIn             = "barge_in"
)

// Message types sent from the agent to the client. TypeAudioChunk is
// shared: outbound it carries Data (mic PCM), inbound Audio (TTS MP3).
const (
	TypeTranscript      = "transcript"
	TypeFinalTranscript = "final_transcript"
	TypeLLMChunk        = "llm_chunk"
	TypeLLMDone         = "llm_done"
	TypeSearchStart     = "search_start"
	TypeTTSStart        = "tts_start"
	TypeSearchAudioDone = "search_audio_done"
	TypeTTSDone         = "tts_done"
	TypeStopAudio       = "stop_audio"
	TypePing            = "ping"
)

// Message is the envelope for every channel message. The agent sends flat
// JSON objects tagged by "type"; unused fields are omitted on the wire.
type Message struct {
	Type string `json:"type"`

	// Data carries base64 PCM16 mic audio on outbound audio_chunk.
	Data string `json:"data,omitempty"`

	// Audio and ChunkNum arrive on inbound audio_chunk. ChunkNum is the
	// agent's running counter; ordering is by arrival, not by this field.
	Audio    string `json:"audio,omitempty"`
	ChunkNum int    `json:"chunk_num,omitempty"`

	// Text arrives on transcript, final_transcript and llm_chunk.
	Text string `json:"text,omitempty"`

	// TotalTime arrives on tts_done: seconds from turn start to reply done.
	TotalTime float64 `json:"total_time,omitempty"`
}

// AudioChunk builds an outbound captured-audio message.
func AudioChunk(data string) Message {
	return Message{Type: TypeAudioChunk, Data: data}
}

// UserStoppedSpeaking builds the end-of-turn message.
func UserStoppedSpeaking() Message {
	return Message{Type: TypeUserStoppedSpeaking}
}

// BargeIn builds the interrupt message.
func BargeIn() Message {
	return Message{Type: TypeBargeIn}
}

// Decode parses a raw text frame into a Message.
func Decode(data []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// Encode serializes a Message for the wire.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
