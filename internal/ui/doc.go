// Package ui implements an interactive document browser using bubbletea's Elm architecture.
//
// Views:
//  1. [DocumentListView] : page through documents, newest first, optionally filtered by tag
//  2. [TagInputView] : edit the tag filter
//  3. [ContentView] : read one document after its body is downloaded
//  4. [ConfirmDeleteView] : confirm deleting the selected document
//
// Every store call goes through the [tasks.SyncEngine]; a tea.Cmd enqueues the operation and waits for its task, so the
// event loop never blocks on the network. Scheduler state changes arrive on the updates channel and feed the status line.
//
// Keyboard navigation uses vim-style bindings with contextual help from charmbracelet/bubbles/help.
package ui
