// Package revalcache implements incremental revalidation for server-rendered
// pages and the outbound HTTP calls made while rendering them.
//
// A rendered value is served from the backend while fresh. Once stale it is
// still served, and a single background regeneration per key replaces it.
// Outbound calls made through Cache.Transport with FetchOptions are cached
// the same way, and the tags they carry are collected into the tag scope of
// the render that made them, so invalidating a data tag also invalidates
// every page built from it.
//
// Components:
//   - Backend: storage contract (Get with a freshness verdict, Set with TTL
//     and tags, InvalidateTag, InvalidatePath). store.Store is the bundled
//     implementation over a provider.Provider and a genstore.GenStore.
//   - Coordinator: at most one background regeneration per key.
//   - Registry: bounded LRU of the TTL each key was last written with, used
//     to render Cache-Control headers.
//   - Tag scope: per-request tag collection carried by context.Context.
//
// Keys:
//
//	page:<path>        - full pages
//	component:<path>   - component-tree renderings
//	call:<sha256>      - outbound call results (method, url, body)
//
// Identifiers longer than MaxIdentifierLength are replaced by HashMarker and
// an xxhash64 digest.
//
// Render path:
//
//	served, err := cache.Serve(ctx, revalcache.CacheKey(revalcache.KindPage, r.URL.Path), time.Minute,
//	    func(ctx context.Context) (revalcache.CachedValue, error) {
//	        req, _ := http.NewRequestWithContext(
//	            revalcache.WithFetchOptions(ctx, revalcache.FetchOptions{Tags: []string{"posts"}}),
//	            http.MethodGet, postsURL, nil)
//	        resp, err := client.Do(req) // client := cache.Client(nil)
//	        ...
//	        return &revalcache.PageValue{HTML: html}, nil
//	    })
//	w.Header().Set("Cache-Control", served.CacheControl)
//	w.Header().Set("X-Cache", string(served.Status))
package revalcache
