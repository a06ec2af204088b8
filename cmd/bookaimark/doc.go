// Command bookaimark manages bookmarks from the terminal and serves the
// BookAIMark HTTP API.
//
// Every command loads the configuration lazily; see `bookaimark config init`
// for a commented sample. The storage driver, LLM provider and ntfy topic
// are all chosen there.
package main
