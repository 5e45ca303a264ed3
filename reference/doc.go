// Package reference resolves stored identifiers into live entities.
//
// A relationship field is stored as one or more identifiers and decoded into a
// [Handle]. Handles resolve at most once: they consult the session's entity
// cache, fetch what is missing through a [Finder], and materialize fetched
// documents through a [Materializer].
//
// # Handles
//
//   - [Single] resolves one identifier with a point fetch.
//   - [List] resolves many identifiers with one batch fetch per origin, keeping order.
//   - [Set] is a List deduplicated by identifier.
//   - [Map] resolves values positionally and re-associates them with their keys.
//
// # Lazy references
//
// [Ref] is the stand-in for a relationship field. It is either resolved, holding
// its value, or deferred, holding a handle that is resolved on first access.
// String and Equal trigger resolution too, so a touched lazy reference behaves
// exactly like an eagerly resolved one.
//
// # Errors
//
//   - [ErrMissingReference] - a referenced identifier could not be fetched
//   - [ErrCircularReference] - eager resolution re-entered an identifier it is resolving
//   - [ErrNoFinder] - a fetch was needed but the session has no finder
//   - [ErrTypeMismatch] - a resolved value does not fit the declared type
package reference
