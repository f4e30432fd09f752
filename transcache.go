// Package transcache provides a translation-result cache with request
// coalescing in front of an AI translation provider.
//
// A Translator resolves each request against a Store using two cache keys:
// a resource key for (resourceType, resourceId, field, targetLanguage) and a
// content hash key for (sourceText, targetLanguage). Resource entries win,
// which is what makes manual overrides effective. Concurrent misses for the
// same key share a single provider call.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/transcache"
//	    "github.com/ZaguanLabs/transcache/cache"
//	    "github.com/ZaguanLabs/transcache/provider"
//	)
//
//	func main() {
//	    p := provider.NewOpenAIProvider(provider.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//
//	    t := transcache.NewTranslator(p,
//	        transcache.WithStore(cache.NewMemoryStore(0)),
//	    )
//	    defer t.Wait()
//
//	    res, err := t.TranslateOne(context.Background(), transcache.TranslateParams{
//	        Text: "flat",
//	        To:   "he",
//	        Resource: transcache.ResourceInfo{
//	            Type: "property", ID: "123", Field: "propertyType",
//	        },
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(res.Text, res.Cached)
//	}
package transcache
