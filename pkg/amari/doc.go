// Package amari is a drop-in replacement for a plain OpenAI chat client
// that augments completions with live web search. When the user's prompt
// needs current information, the question is classified, rewritten as a
// search query, and the retrieved snippets are injected into the prompt
// before it reaches the model. Prompts that do not need live data pass
// through untouched, and the response shape is always the provider's own.
//
// Minimal usage:
//
//	client, err := amari.New(amari.Config{
//		APIKey:      "sk-...",
//		AmariAPIKey: "am-...",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.ChatCompletion(ctx, "gpt-4o-mini",
//		[]llm.Message{llm.NewTextMessage(llm.RoleUser, "What happened in the markets today?")},
//		amari.WithTemperature(0.7),
//	)
//	fmt.Println(resp.GetText())
//
// Keys can also come from key files or from the OPENAI_API_KEY and
// AMARI_API_KEY environment variables; see Config.
package amari
