// Package browse implements the client side of the core's hierarchical
// browse service.
//
// The core exposes its content catalog (library, radio stations, playlists)
// as a stack of lists. A browse request navigates the stack and answers
// with one of five actions:
//
//   - list: a new list is shown; its items must be fetched with a load
//   - message: a message for the user, possibly an error
//   - replace_item: the item that was acted on changed
//   - remove_item: the item that was acted on disappeared
//   - none: nothing to do
//
// [Session] turns those answers into a cached [State] (current list, the
// loaded page of items, and the page offset) and tells the caller which
// follow-up load, if any, it must issue. The session does no I/O itself.
package browse
