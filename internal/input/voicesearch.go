package input

// Voice search decoding. Assistant search intents arrive as a free-text
// query plus optional structured extras naming what the query focuses on.

// SearchFocus classifies what a structured voice query asks for.
type SearchFocus int

const (
	FocusNone SearchFocus = iota
	FocusGenre
	FocusArtist
	FocusAlbum
	FocusSong
)

func (f SearchFocus) String() string {
	switch f {
	case FocusGenre:
		return "genre"
	case FocusArtist:
		return "artist"
	case FocusAlbum:
		return "album"
	case FocusSong:
		return "song"
	default:
		return "none"
	}
}

// NullField is the sentinel value carried by extras fields the assistant left
// unset. Unset fields in the decoded search default to it as well.
const NullField = "null"

// SearchExtras is the structured half of a voice query. Fields may arrive as
// the NullField sentinel when the assistant could not fill them.
type SearchExtras struct {
	Focus  string
	Genre  string
	Artist string
	Album  string
	Title  string
}

// VoiceSearch is a decoded voice query ready for library lookup.
type VoiceSearch struct {
	Query  string
	Focus  SearchFocus
	Genre  string
	Artist string
	Album  string
	Song   string

	// Any means "play anything": the query was empty.
	Any bool
	// Unstructured means no extras arrived; only Query is usable.
	Unstructured bool
}

// orNull keeps the NullField sentinel on fields the assistant left unset.
func orNull(s string) string {
	if s == "" {
		return NullField
	}
	return s
}

// IsSet reports whether a decoded field carries a usable value rather than
// the NullField sentinel.
func IsSet(field string) bool {
	return field != "" && field != NullField
}

// ParseVoiceSearch decodes a voice query. An empty query means "play
// anything"; missing extras mean an unstructured free-text search. With
// extras, the focus picks which fields drive the lookup; unset fields keep
// the NullField sentinel, except a genre focus with an unset genre, which
// falls back to the raw query.
func ParseVoiceSearch(query string, extras *SearchExtras) VoiceSearch {
	vs := VoiceSearch{Query: query}

	if query == "" {
		vs.Any = true
		return vs
	}
	if extras == nil {
		vs.Unstructured = true
		return vs
	}

	vs.Genre = orNull(extras.Genre)
	vs.Artist = orNull(extras.Artist)
	vs.Album = orNull(extras.Album)
	vs.Song = orNull(extras.Title)

	switch extras.Focus {
	case "genre":
		vs.Focus = FocusGenre
		if !IsSet(vs.Genre) {
			vs.Genre = query
		}
	case "artist":
		vs.Focus = FocusArtist
	case "album":
		vs.Focus = FocusAlbum
	case "song", "title":
		vs.Focus = FocusSong
	default:
		vs.Unstructured = true
	}
	return vs
}
