/*
Package background fetches the photos that quotes are drawn on.

Client talks to Unsplash. Without an access key it uses the keyless
source.unsplash.com endpoint (/random/{w}x{h}); with one it asks the official
API for a random landscape photo and downloads it cropped to the requested
size. Requests are rate limited and failed downloads are retried, so a flaky
connection does not cost the whole run.

DirSource serves photos from a local directory instead, for offline use and
tests.
*/
package background
