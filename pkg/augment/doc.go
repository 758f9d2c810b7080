// Package augment decides when a chat request needs current information
// from the web, retrieves it, and injects it into the prompt.
//
// The pipeline has three stages, each replaceable:
//
//   - IntentClassifier: does the conversation need live information?
//   - QueryExtractor: what should be searched for?
//   - search.Provider: retrieve ranked snippets for the query.
//
// LiveSearch ties the stages together as an llm.Middleware. It is
// fail-open end to end: any stage failing forwards the original request
// untouched, so a search outage can never break chat completions. The
// outcome of every request is recorded in the request metadata.
//
//	ls, err := augment.NewLiveSearch(augment.Config{
//	    Retriever: search.NewAmari(amariKey),
//	})
//	client = llm.ClientWithMiddleware(client, []llm.Middleware{ls})
package augment
