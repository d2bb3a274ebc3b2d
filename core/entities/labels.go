package entities

import "fmt"

// Label is a column of the label matrix produced by the tagging model.
type Label int

const (
	LabelOutside Label = iota
	LabelBeginArtist
	LabelInsideArtist
	LabelBeginWorkOfArt
	LabelInsideWorkOfArt
)

// LabelCount is the number of columns every label matrix row must carry.
const LabelCount = 5

type Kind string

const (
	KindArtist    Kind = "artist"
	KindWorkOfArt Kind = "work_of_art"
)

func (l Label) String() string {
	switch l {
	case LabelOutside:
		return "O"
	case LabelBeginArtist:
		return "B-Artist"
	case LabelInsideArtist:
		return "I-Artist"
	case LabelBeginWorkOfArt:
		return "B-WoA"
	case LabelInsideWorkOfArt:
		return "I-WoA"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Kind returns the entity kind the label belongs to. It reports false for
// LabelOutside and unknown labels.
func (l Label) Kind() (Kind, bool) {
	switch l {
	case LabelBeginArtist, LabelInsideArtist:
		return KindArtist, true
	case LabelBeginWorkOfArt, LabelInsideWorkOfArt:
		return KindWorkOfArt, true
	default:
		return "", false
	}
}

func (l Label) IsBegin() bool {
	return l == LabelBeginArtist || l == LabelBeginWorkOfArt
}

func (l Label) IsInside() bool {
	return l == LabelInsideArtist || l == LabelInsideWorkOfArt
}
