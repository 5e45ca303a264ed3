package mapping

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/espalier/document"
)

type Status int

const (
	StatusDraft Status = iota
	StatusLive
)

type Address struct {
	Street string
	City   string `doc:"town"`
}

type Profile struct {
	ID       string
	Handle   string
	Age      int
	Level    uint8
	Score    float64
	Active   bool
	Joined   time.Time
	Timeout  time.Duration
	Avatar   []byte
	Token    uuid.UUID
	Tags     []string
	Counts   map[string]int
	Slots    map[int]string
	Home     *Address
	Past     []Address
	Pair     [2]int
	Status   Status
	Extra    any
	Nickname string `doc:",omitempty"`
	Scratch  string `doc:"-"`
}

func newProfile() Profile {
	return Profile{
		ID:      "p1",
		Handle:  "ann",
		Age:     41,
		Level:   7,
		Score:   9.5,
		Active:  true,
		Joined:  time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC),
		Timeout: 90 * time.Second,
		Avatar:  []byte{1, 2, 3},
		Token:   uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Tags:    []string{"a", "b"},
		Counts:  map[string]int{"x": 1, "y": 2},
		Slots:   map[int]string{1: "one", 20: "twenty"},
		Home:    &Address{Street: "Main St", City: "Springfield"},
		Past:    []Address{{Street: "Elm", City: "Shelbyville"}},
		Pair:    [2]int{3, 4},
		Status:  StatusLive,
		Extra:   map[string]any{"note": "hello"},
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	m := newTestMapper(t, nil)
	RegisterEnum(m, map[Status]string{StatusDraft: "draft", StatusLive: "live"})
	require.NoError(t, m.Register(&Profile{}, WithoutDiscriminator()))

	in := newProfile()
	in.Scratch = "not stored"
	doc := encode(t, m, &in)

	assert.False(t, doc.Has("_t"))
	assert.False(t, doc.Has("nickname"))
	assert.False(t, doc.Has("scratch"))
	status, _ := doc.Get("status")
	assert.Equal(t, document.String("live"), status)
	home, _ := doc.Get("home")
	homeDoc, err := home.AsDocument()
	require.NoError(t, err)
	assert.True(t, homeDoc.Has("town"))

	var out Profile
	require.NoError(t, m.Decode(context.Background(), doc, &out))
	in.Scratch = ""
	assert.Equal(t, in, out)
}

func TestDecode_RoundTripThroughDynamo(t *testing.T) {
	m := newTestMapper(t, nil)
	RegisterEnum(m, map[Status]string{StatusDraft: "draft", StatusLive: "live"})
	require.NoError(t, m.Register(&Profile{}, WithoutDiscriminator()))

	in := newProfile()
	item := encode(t, m, &in).Item()

	doc, err := document.FromItem(item)
	require.NoError(t, err)

	out, err := DecodeAs[*Profile](context.Background(), m, doc)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

type Shape interface {
	Area() float64
}

type Circle struct {
	ID     string
	Radius float64
}

func (c Circle) Area() float64 { return 3 * c.Radius * c.Radius }

type Square struct {
	ID   string
	Side float64
}

func (s Square) Area() float64 { return s.Side * s.Side }

type Drawing struct {
	ID     string
	Main   Shape
	Shapes []Shape
}

func TestDecode_SelectsSubtypeFromDiscriminator(t *testing.T) {
	m := newTestMapper(t, nil, &Circle{}, &Square{})

	doc := document.New(
		document.Field{Name: "_t", Value: document.String("Square")},
		document.Field{Name: "id", Value: document.String("s1")},
		document.Field{Name: "side", Value: document.Int(3)},
	)

	var s Shape
	require.NoError(t, m.Decode(context.Background(), doc, &s))
	require.IsType(t, &Square{}, s)
	assert.Equal(t, 9.0, s.Area())
}

func TestDecode_PolymorphicFields(t *testing.T) {
	m := newTestMapper(t, nil, &Circle{}, &Square{}, &Drawing{})

	in := Drawing{
		ID:     "d1",
		Main:   &Circle{ID: "c", Radius: 1},
		Shapes: []Shape{&Square{ID: "s", Side: 2}, Circle{ID: "c2", Radius: 2}},
	}
	doc := encode(t, m, &in)

	main, _ := doc.Get("main")
	mainDoc, err := main.AsDocument()
	require.NoError(t, err)
	tag, _ := mainDoc.Get("_t")
	assert.Equal(t, document.String("Circle"), tag)

	var out Drawing
	require.NoError(t, m.Decode(context.Background(), doc, &out))
	assert.Equal(t, &Circle{ID: "c", Radius: 1}, out.Main)
	require.Len(t, out.Shapes, 2)
	assert.Equal(t, &Square{ID: "s", Side: 2}, out.Shapes[0])
	assert.Equal(t, &Circle{ID: "c2", Radius: 2}, out.Shapes[1])
}

func TestDecode_UnknownDiscriminator(t *testing.T) {
	m := newTestMapper(t, nil, &Circle{})

	doc := document.New(
		document.Field{Name: "_t", Value: document.String("Hexagon")},
		document.Field{Name: "id", Value: document.String("h1")},
	)

	var s Shape
	err := m.Decode(context.Background(), doc, &s)
	assert.ErrorIs(t, err, ErrUnknownDiscriminator)

	var c Circle
	err = m.Decode(context.Background(), doc, &c)
	assert.ErrorIs(t, err, ErrUnknownDiscriminator)
}

func TestDecode_DiscriminatorForOtherType(t *testing.T) {
	m := newTestMapper(t, nil, &Circle{}, &Square{})

	doc := encode(t, m, &Square{ID: "s1", Side: 1})

	var c Circle
	err := m.Decode(context.Background(), doc, &c)
	assert.ErrorIs(t, err, ErrMapping)
}

func TestDecode_InterfaceWithoutDiscriminator(t *testing.T) {
	m := newTestMapper(t, nil, &Circle{})

	doc := document.New(document.Field{Name: "id", Value: document.String("c1")})

	var s Shape
	err := m.Decode(context.Background(), doc, &s)
	assert.ErrorIs(t, err, ErrMapping)
}

func TestDecode_DropsUnknownFields(t *testing.T) {
	m := newTestMapper(t, nil, &Customer{})

	doc := document.New(
		document.Field{Name: "_t", Value: document.String("Customer")},
		document.Field{Name: "id", Value: document.String("c1")},
		document.Field{Name: "loyalty", Value: document.Int(5)},
		document.Field{Name: "name", Value: document.String("Ann")},
	)

	var c Customer
	require.NoError(t, m.Decode(context.Background(), doc, &c))
	assert.Equal(t, Customer{ID: "c1", Name: "Ann"}, c)
}

func TestDecode_NullLeavesZeroValue(t *testing.T) {
	m := newTestMapper(t, nil, &Customer{})

	doc := document.New(
		document.Field{Name: "id", Value: document.String("c1")},
		document.Field{Name: "name", Value: document.Null()},
	)

	var c Customer
	require.NoError(t, m.Decode(context.Background(), doc, &c))
	assert.Equal(t, "", c.Name)
}

func TestDecode_MissingIdentifier(t *testing.T) {
	m := newTestMapper(t, nil, &Customer{})

	doc := document.New(document.Field{Name: "name", Value: document.String("Ann")})

	var c Customer
	err := m.Decode(context.Background(), doc, &c)
	assert.ErrorIs(t, err, ErrMapping)

	// Unregistered value types have no required identifier.
	var a Address
	require.NoError(t, m.Decode(context.Background(), document.New(), &a))
}

type Reading struct {
	ID      string
	Count   int
	Ratio   float64
	Enabled bool
	When    time.Time
	Label   string
	Values  []int
	Limits  map[string]float64
}

func TestDecode_ConvertsMismatchedShapes(t *testing.T) {
	m := newTestMapper(t, nil, &Reading{})

	doc := document.New(
		document.Field{Name: "id", Value: document.String("r1")},
		document.Field{Name: "count", Value: document.String("42")},
		document.Field{Name: "ratio", Value: document.String("0.25")},
		document.Field{Name: "enabled", Value: document.String("true")},
		document.Field{Name: "when", Value: document.String("2024-03-01")},
		document.Field{Name: "label", Value: document.Int(7)},
		document.Field{Name: "values", Value: document.Array(document.String("1"), document.Int(2))},
		document.Field{Name: "limits", Value: document.Doc(document.New(
			document.Field{Name: "max", Value: document.String("1.5")},
		))},
	)

	var r Reading
	require.NoError(t, m.Decode(context.Background(), doc, &r))
	assert.Equal(t, 42, r.Count)
	assert.Equal(t, 0.25, r.Ratio)
	assert.True(t, r.Enabled)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(r.When))
	assert.Equal(t, "7", r.Label)
	assert.Equal(t, []int{1, 2}, r.Values)
	assert.Equal(t, map[string]float64{"max": 1.5}, r.Limits)
}

func TestDecode_ConversionFailure(t *testing.T) {
	m := newTestMapper(t, nil, &Reading{})

	doc := document.New(
		document.Field{Name: "id", Value: document.String("r1")},
		document.Field{Name: "count", Value: document.String("many")},
	)

	var r Reading
	err := m.Decode(context.Background(), doc, &r)
	assert.ErrorIs(t, err, ErrConversion)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestDecode_NumberAsTimeIsUnixMillis(t *testing.T) {
	m := newTestMapper(t, nil, &Reading{})

	doc := document.New(
		document.Field{Name: "id", Value: document.String("r1")},
		document.Field{Name: "when", Value: document.Int(1700000000000)},
	)

	var r Reading
	require.NoError(t, m.Decode(context.Background(), doc, &r))
	assert.Equal(t, int64(1700000000000), r.When.UnixMilli())
}

func TestDecode_TargetMustBePointer(t *testing.T) {
	m := newTestMapper(t, nil, &Customer{})

	err := m.Decode(context.Background(), document.New(), Customer{})
	assert.ErrorIs(t, err, ErrMapping)

	var c *Customer
	err = m.Decode(context.Background(), document.New(), c)
	assert.ErrorIs(t, err, ErrMapping)
}

// unixCodec stores times as unix seconds.
type unixCodec struct{}

func (unixCodec) Decode(_ *DecodeContext, v document.Value, t reflect.Type) (reflect.Value, error) {
	s, err := v.AsInt()
	if err != nil {
		return reflect.Value{}, mismatch(v, t)
	}
	return reflect.ValueOf(time.Unix(s, 0).UTC()), nil
}

func (unixCodec) Encode(_ *EncodeContext, v reflect.Value) (document.Value, error) {
	return document.Int(v.Interface().(time.Time).Unix()), nil
}

func TestRegisterCodec_ShadowsBuiltin(t *testing.T) {
	m := newTestMapper(t, nil, &Reading{})
	m.RegisterCodec(reflect.TypeOf(time.Time{}), unixCodec{})

	in := Reading{ID: "r1", When: time.Unix(1700000000, 0).UTC()}
	doc := encode(t, m, &in)

	when, _ := doc.Get("when")
	assert.Equal(t, document.Int(1700000000), when)

	var out Reading
	require.NoError(t, m.Decode(context.Background(), doc, &out))
	assert.True(t, in.When.Equal(out.When))
}

func TestEnumCodec_UnknownName(t *testing.T) {
	m := newTestMapper(t, nil)
	RegisterEnum(m, map[Status]string{StatusDraft: "draft"})

	_, err := m.EncodeValue(StatusLive)
	assert.ErrorIs(t, err, ErrMapping)

	dc := &DecodeContext{mapper: m}
	_, err = dc.Decode(document.String("archived"), reflect.TypeOf(StatusDraft))
	assert.ErrorIs(t, err, ErrMapping)
}

type Account struct {
	ID     string
	Email  string
	loaded bool
}

func (a *Account) PostLoad() error {
	a.loaded = true
	return nil
}

func (a *Account) PrePersist() error {
	if a.ID == "" {
		a.ID = "generated"
	}
	return nil
}

func TestLifecycleHooks(t *testing.T) {
	m := newTestMapper(t, nil, &Account{})

	in := &Account{Email: "a@example.com"}
	doc := encode(t, m, in)
	assert.Equal(t, "generated", in.ID)

	var out Account
	require.NoError(t, m.Decode(context.Background(), doc, &out))
	assert.True(t, out.loaded)
	assert.Equal(t, "generated", out.ID)
}

type Base struct {
	ID      string
	Created time.Time
}

type Article struct {
	Base
	Title string
}

type Post struct {
	*Base
	Body string
}

func TestDecode_EmbeddedStructs(t *testing.T) {
	m := newTestMapper(t, nil, &Article{}, &Post{})

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := Article{Base: Base{ID: "a1", Created: created}, Title: "Hello"}
	doc := encode(t, m, &a)
	assert.Equal(t, []string{"_t", "id", "created", "title"}, doc.Names())

	var out Article
	require.NoError(t, m.Decode(context.Background(), doc, &out))
	assert.Equal(t, a, out)

	p := Post{Base: &Base{ID: "p1", Created: created}, Body: "text"}
	var outPost Post
	require.NoError(t, m.Decode(context.Background(), encode(t, m, &p), &outPost))
	require.NotNil(t, outPost.Base)
	assert.Equal(t, "p1", outPost.ID)
	assert.Equal(t, "text", outPost.Body)
}

func TestDecode_SharedCacheAcrossCalls(t *testing.T) {
	f := newMemFinder()
	m := newTestMapper(t, f, &Customer{}, &Invoice{})
	f.put(t, "customers", encode(t, m, &Customer{ID: "c1", Name: "Ann"}))

	doc := document.New(
		document.Field{Name: "id", Value: document.String("i1")},
		document.Field{Name: "payer", Value: document.String("c1")},
	)

	shared := m.NewSession(context.Background()).Cache()
	var first, second Invoice
	require.NoError(t, m.Decode(context.Background(), doc, &first, WithCache(shared)))
	require.NoError(t, m.Decode(context.Background(), doc, &second, WithCache(shared)))
	one, _ := f.calls()
	assert.Equal(t, 1, one)
	assert.Same(t, first.Payer, second.Payer)

	var fresh Invoice
	require.NoError(t, m.Decode(context.Background(), doc, &fresh))
	one, _ = f.calls()
	assert.Equal(t, 2, one)
}

func TestIdentifier_SetAndRead(t *testing.T) {
	m := newTestMapper(t, nil, &Customer{})

	c := &Customer{Name: "Ann"}
	id, err := m.IdentifierOf(reflect.ValueOf(c))
	require.NoError(t, err)
	assert.True(t, id.IsNull())

	require.NoError(t, m.SetIdentifier(c, "c9"))
	assert.Equal(t, "c9", c.ID)

	id, err = m.IdentifierOf(reflect.ValueOf(c))
	require.NoError(t, err)
	assert.True(t, id.Equal(document.String("c9")))

	assert.ErrorIs(t, m.SetIdentifier(Customer{}, "x"), ErrMapping)
	assert.ErrorIs(t, m.SetIdentifier(&Address{}, "x"), ErrMapping)
}
