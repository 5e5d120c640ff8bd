// Package domain defines the core business entities of the bookmark and
// feed system: bookmarks, tags, feeds and feed entries. Entities validate
// themselves and carry no persistence or transport concerns.
package domain
