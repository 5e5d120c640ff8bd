// Package gemini implements the description generator boundary using
// Google's Gemini API.
package gemini
