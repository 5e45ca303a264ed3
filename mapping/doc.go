// Package mapping converts entities to and from documents.
//
// A Mapper describes struct types from their `doc` tags, selects concrete
// types for polymorphic documents by a stored type tag, and encodes
// relationship fields as identifiers that decode into reference handles.
//
//	m := mapping.New(finder, mapping.DefaultConfig())
//	m.MustRegister(&Order{})
//	m.MustRegister(&Customer{})
//
//	doc, err := m.Encode(order)
//	...
//	var out Order
//	err = m.Decode(ctx, doc, &out)
//
// Decoding is lenient: fields of the document that map to no property are
// dropped, and a value stored with a different shape than its property is
// converted where possible (see Convert).
package mapping
