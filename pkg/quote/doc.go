// Package quote prepares the text that ends up on a quote image: it cleans a
// raw quote collection into training sentences, reads the real-quote dataset
// and the author list, and wraps a phrase into short lines.
package quote
