package contest

import (
	"fmt"
	"strconv"

	"github.com/alex65536/daybot/internal/util/sliceutil"
	"github.com/lucasb-eyer/go-colorful"
)

const EndedMessage = "The current contest has ended!"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Announcement struct {
	Title string
	// Color is a 0xRRGGBB value, zero means the platform default.
	Color  int
	Fields []Field
}

func Render(d ContestDay) Announcement {
	fields := make([]Field, 0, len(d.Hints)+1)
	fields = append(fields, Field{Name: "Version", Value: d.Version})
	fields = append(fields, sliceutil.MapIndexed(d.Hints, func(i int, hint string) Field {
		return Field{
			Name:   "Hint " + strconv.Itoa(i+1),
			Value:  hint,
			Inline: true,
		}
	})...)
	return Announcement{
		Title:  fmt.Sprintf("Day %v", d.Day),
		Fields: fields,
	}
}

// ParseColor accepts "#rrggbb" or "#rgb". The empty string yields zero.
func ParseColor(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return int(r)<<16 | int(g)<<8 | int(b), nil
}
