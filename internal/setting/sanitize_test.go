package setting

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sanitize(t *testing.T, raw string) Setting {
	t.Helper()
	s, err := Sanitize(json.RawMessage(raw), Invalid)
	require.NoError(t, err, raw)
	return s
}

func rejected(t *testing.T, raw string) {
	t.Helper()
	_, err := Sanitize(json.RawMessage(raw), Invalid)
	assert.ErrorIs(t, err, ErrRejected, raw)
}

func TestSanitizeColorClamps(t *testing.T) {
	s := sanitize(t, `{"displayName":"Color","value":[2,-1,0.5]}`)
	assert.Equal(t, [3]float64{1, 0, 0.5}, s.(*Color).Value)
}

func TestSanitizeTimeClamps(t *testing.T) {
	s := sanitize(t, `{"displayName":"Wake","value":[25,-3]}`)
	assert.Equal(t, [2]float64{23, 0}, s.(*Time).Value)
}

func TestSanitizeNumber(t *testing.T) {
	s := sanitize(t, `{"displayName":"Pos","value":7.4,"min":1,"max":10,"step":2,"strict":true}`).(*Number)
	assert.Equal(t, 7.0, s.Value)

	s = sanitize(t, `{"displayName":"Pos","value":99,"min":1,"max":10,"step":2,"strict":true}`).(*Number)
	assert.Equal(t, 9.0, s.Value, "largest on-grid value below max")

	s = sanitize(t, `{"displayName":"Pos","value":99,"min":1,"max":10}`).(*Number)
	assert.Equal(t, 99.0, s.Value, "non-strict numbers are not clamped")

	s = sanitize(t, `{"displayName":"Pos","value":-4,"min":0,"max":1,"strict":true}`).(*Number)
	assert.Equal(t, 0.0, s.Value)

	rejected(t, `{"displayName":"Pos","value":1,"min":1}`)
	rejected(t, `{"displayName":"Pos","value":1,"strict":true}`)
	rejected(t, `{"displayName":"Pos","value":1,"min":"1","max":2}`)
	rejected(t, `{"displayName":"Pos","value":1,"min":1,"max":2,"strict":"yes"}`)
	rejected(t, `{"displayName":"Pos","value":1,"step":null}`)
}

func TestSanitizeNumberKeepsOddBounds(t *testing.T) {
	s := sanitize(t, `{"displayName":"Pos","value":1,"min":3,"max":2}`).(*Number)
	assert.Equal(t, 1.0, s.Value, "inverted bounds are stored as given")

	s = sanitize(t, `{"displayName":"Pos","value":1.3,"min":0,"max":5,"step":-1}`).(*Number)
	assert.Equal(t, 1.3, s.Value)
	require.NotNil(t, s.Step)
	assert.Equal(t, -1.0, *s.Step)

	s = sanitize(t, `{"displayName":"Pos","value":1.3,"min":0,"max":5,"step":-1,"strict":true}`).(*Number)
	assert.Equal(t, 1.3, s.Value, "a non-positive step does not round")
}

func TestSanitizeStringTruncates(t *testing.T) {
	long := strings.Repeat("é", MaxStringLen+10)
	raw, err := json.Marshal(map[string]any{"displayName": "Title", "value": long, "placeholder": "Untitled"})
	require.NoError(t, err)

	s, err := Sanitize(raw, Invalid)
	require.NoError(t, err)
	str := s.(*String)
	assert.Equal(t, MaxStringLen, len([]rune(str.Value)))
	assert.Equal(t, "Untitled", str.Placeholder)

	rejected(t, `{"displayName":"Title","value":"x","placeholder":3}`)
}

func TestSanitizeSelect(t *testing.T) {
	s := sanitize(t, `{"displayName":"Type","value":"b","options":{"z":"Z","b":"B","a":"A"}}`).(*Select)
	assert.Equal(t, []string{"z", "b", "a"}, s.Options.Keys())

	rejected(t, `{"displayName":"Type","value":"c","options":{"a":"A"}}`)
	rejected(t, `{"displayName":"Type","value":"a","options":{"a":1}}`)
	rejected(t, `{"displayName":"Type","value":"a","options":["a"]}`)
	rejected(t, `{"displayName":"Type","value":"a","options":null}`)
}

func TestSanitizeBooleanArray(t *testing.T) {
	s := sanitize(t, `{"displayName":"LEDs","value":[true,false,true],"limit":2}`).(*BooleanArray)
	assert.Equal(t, []bool{true, false, true}, s.Value)

	rejected(t, `{"displayName":"LEDs","value":[true,true,true],"limit":2}`)
	rejected(t, `{"displayName":"LEDs","value":[true]}`)
	rejected(t, `{"displayName":"LEDs","value":[]}`)
}

func TestSanitizeHeader(t *testing.T) {
	s := sanitize(t, `{"displayName":"On","value":true,"constant":true}`)
	assert.True(t, s.IsConstant())
	assert.Equal(t, "On", s.Label())

	rejected(t, `{"value":true}`)
	rejected(t, `{"displayName":3,"value":true}`)
	rejected(t, `{"displayName":"On","value":true,"constant":"no"}`)
	rejected(t, `"string"`)
}

func TestSanitizeWithExpectedKind(t *testing.T) {
	_, err := Sanitize(json.RawMessage(`{"displayName":"Wake","value":[true,false]}`), KindTime)
	assert.ErrorIs(t, err, ErrRejected)

	s, err := Sanitize(json.RawMessage(`{"displayName":"Wake","value":[6,15]}`), KindTime)
	require.NoError(t, err)
	assert.Equal(t, KindTime, s.Kind())
}

func TestSameSchema(t *testing.T) {
	cur := &Number{Header: Header{DisplayName: "Speed"}, Value: 1, Min: Float(0), Max: Float(2), Step: Float(0.5)}

	next := Clone(cur).(*Number)
	next.Value = 2
	assert.True(t, SameSchema(cur, next))

	next.Step = Float(0.1)
	assert.False(t, SameSchema(cur, next))

	next = Clone(cur).(*Number)
	next.DisplayName = "Other"
	assert.False(t, SameSchema(cur, next))

	next = Clone(cur).(*Number)
	next.Constant = true
	assert.False(t, SameSchema(cur, next))

	sel := &Select{Header: Header{DisplayName: "_activity"}, Value: "enabled", Options: Opts("enabled", "a", "disabled", "c")}
	reordered := &Select{Header: sel.Header, Value: "enabled", Options: Opts("disabled", "c", "enabled", "a")}
	assert.False(t, SameSchema(sel, reordered))
	assert.False(t, SameSchema(sel, &Boolean{Header: sel.Header}))
}

func TestMapOrderAndClone(t *testing.T) {
	m := NewMap().
		With("color", &Color{Header: Header{DisplayName: "Color"}, Value: [3]float64{1, 1, 1}}).
		With("activePixels", &BooleanArray{Header: Header{DisplayName: "LEDs"}, Value: []bool{false, true}, Limit: 1})

	c := m.Clone()
	a, _ := c.Get("activePixels")
	a.(*BooleanArray).Value[0] = true
	orig, _ := m.Get("activePixels")
	assert.Equal(t, []bool{false, true}, orig.(*BooleanArray).Value)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"color":{"displayName":"Color","value":[1,1,1]},"activePixels":{"displayName":"LEDs","value":[false,true],"limit":1}}`, string(b))
	assert.Equal(t, []string{"color", "activePixels"}, m.Keys())
}
