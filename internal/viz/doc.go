// Package viz renders simulation results for the terminal.
//
// Profiles are drawn with asciigraph:
//
//   - [SpeedProfile]: speed and speed limit over track position
//   - [TimeProfile]: any sample quantity over simulated time
//
// Styles and themes are lipgloss based and shared with the live view in
// package tui.
package viz
