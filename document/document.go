package document

import (
	"errors"
	"fmt"
)

// Field is a named value inside a Document.
type Field struct {
	Name  string
	Value Value
}

// Document is an ordered mapping from field name to value.
// Field names are unique; Set replaces an existing field in place.
type Document struct {
	fields []Field
}

// New creates a document from fields. Later duplicates replace earlier ones.
func New(fields ...Field) *Document {
	d := &Document{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		d.Set(f.Name, f.Value)
	}
	return d
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.fields)
}

// Fields returns the fields in stored order. The slice must not be modified.
func (d *Document) Fields() []Field {
	if d == nil {
		return nil
	}
	return d.fields
}

// Names returns the field names in stored order.
func (d *Document) Names() []string {
	names := make([]string, 0, d.Len())
	for _, f := range d.Fields() {
		names = append(names, f.Name)
	}
	return names
}

func (d *Document) index(name string) int {
	if d == nil {
		return -1
	}
	for i, f := range d.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the value stored under name.
func (d *Document) Get(name string) (Value, bool) {
	i := d.index(name)
	if i < 0 {
		return Value{}, false
	}
	return d.fields[i].Value, true
}

// Has reports whether name is present.
func (d *Document) Has(name string) bool { return d.index(name) >= 0 }

// Set stores v under name, keeping the original position when name already exists.
func (d *Document) Set(name string, v Value) *Document {
	if i := d.index(name); i >= 0 {
		d.fields[i].Value = v
		return d
	}
	d.fields = append(d.fields, Field{Name: name, Value: v})
	return d
}

// Delete removes name and reports whether it was present.
func (d *Document) Delete(name string) bool {
	i := d.index(name)
	if i < 0 {
		return false
	}
	d.fields = append(d.fields[:i], d.fields[i+1:]...)
	return true
}

// Equal reports whether both documents hold the same fields in the same order.
func (d *Document) Equal(o *Document) bool {
	if d.Len() != o.Len() {
		return false
	}
	for i, f := range d.Fields() {
		g := o.fields[i]
		if f.Name != g.Name || !f.Value.Equal(g.Value) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy; nested values are shared since they are immutable.
func (d *Document) Clone() *Document {
	c := &Document{fields: make([]Field, d.Len())}
	copy(c.fields, d.Fields())
	return c
}

// String renders the document in its canonical key form.
func (d *Document) String() string { return Doc(d).Key() }

// Mark is a saved Reader position.
type Mark struct {
	pos int
}

// Reader walks the fields of a document in stored order.
//
// The cursor starts before the first field; Next advances it. Mark and Reset
// save and restore the cursor, which lets callers peek ahead and rewind.
type Reader struct {
	doc *Document
	pos int
}

// NewReader returns a reader positioned before the first field of d.
func NewReader(d *Document) *Reader {
	return &Reader{doc: d, pos: -1}
}

// Next advances to the next field and reports whether one exists.
func (r *Reader) Next() bool {
	if r.pos < r.doc.Len() {
		r.pos++
	}
	return r.pos < r.doc.Len()
}

// Name returns the current field name.
func (r *Reader) Name() string {
	if r.pos < 0 || r.pos >= r.doc.Len() {
		return ""
	}
	return r.doc.fields[r.pos].Name
}

// Value returns the current field value.
func (r *Reader) Value() Value {
	if r.pos < 0 || r.pos >= r.doc.Len() {
		return Value{}
	}
	return r.doc.fields[r.pos].Value
}

// Mark saves the current position.
func (r *Reader) Mark() Mark { return Mark{pos: r.pos} }

// Reset rewinds the reader to m.
func (r *Reader) Reset(m Mark) { r.pos = m.pos }

// Find advances until the field called name and returns its value.
// The reader is left after the end when name is absent.
func (r *Reader) Find(name string) (Value, bool) {
	for r.Next() {
		if r.Name() == name {
			return r.Value(), true
		}
	}
	return Value{}, false
}

// ErrNoName is returned when a Writer receives a value without a preceding name.
var ErrNoName = errors.New("espalier: value written without a field name")

// Writer builds a document field by field.
type Writer struct {
	doc  *Document
	name string
	has  bool
}

// NewWriter returns a writer for an empty document.
func NewWriter() *Writer {
	return &Writer{doc: New()}
}

// WriteName sets the name of the next value.
func (w *Writer) WriteName(name string) {
	w.name = name
	w.has = true
}

// WriteValue stores v under the pending name.
func (w *Writer) WriteValue(v Value) error {
	if !w.has {
		return ErrNoName
	}
	w.doc.Set(w.name, v)
	w.has = false
	return nil
}

// Write stores v under name.
func (w *Writer) Write(name string, v Value) {
	w.doc.Set(name, v)
	w.has = false
}

// Document returns the document built so far. It fails if a name is pending.
func (w *Writer) Document() (*Document, error) {
	if w.has {
		return nil, fmt.Errorf("espalier: field %q has no value", w.name)
	}
	return w.doc, nil
}
