// Package fetch issues browser-like GET requests, classifies the
// responses and decodes their bodies.
//
// # Building a Fetcher
//
// Use [Build] to create a [Fetcher] with functional options:
//
//	f, err := fetch.Build(
//		fetch.WithTimeout(30 * time.Second),
//		fetch.WithThrottle(2, 4),
//	)
//
// # Fetching
//
// Every request carries a fixed browser header set; [Options] toggles the
// optional headers:
//
//	html, err := f.String(ctx, "https://example.com/", fetch.Options{
//		DoNotTrack: true,
//		Referer:    "https://example.com/index",
//	})
//
// [Fetcher.Stream] returns the decoded body as a stream instead, and
// [Fetcher.Send] returns the raw response with its body still encoded.
// Exactly one attempt is made per call; nothing is retried.
//
// # Errors
//
// A status other than 200 yields a *[StatusError]. Its [Kind] and the
// sentinels [ErrMoved], [ErrForbidden], [ErrNotFound] and [ErrNonOK]
// tell the cases apart:
//
//	_, err := f.String(ctx, u, fetch.Options{})
//	var se *fetch.StatusError
//	if errors.As(err, &se) && se.Kind == fetch.KindMoved {
//		next := se.Location
//	}
//
// Failures of the client itself wrap [ErrTransport]. When a client gets
// stuck, for example because a server stops granting HTTP/2 streams,
// [Fetcher.Renew] swaps in a fresh one.
//
// # Decoding
//
// Bodies are decoded lazily by the registry in
// [github.com/adamwoolhether/httpfetch/fetch/decode]: identity, gzip and
// br are understood. deflate is announced in Accept-Encoding but not
// decoded by default; register it with [WithDecoders] if needed.
package fetch
