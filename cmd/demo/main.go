// Command demo walks the two headline flows without the HTTP layer: the
// session memory trigger (watch token counts climb until summarization
// fires) and ambiguous query handling (rewrites, memory context, clarifying
// questions). It talks to the real model, so OPENAI_API_KEY must be set.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/memchat/memchat-backend/internal/config"
	"github.com/memchat/memchat-backend/internal/llm"
	"github.com/memchat/memchat-backend/internal/models"
	filerepo "github.com/memchat/memchat-backend/internal/repository/file"
	"github.com/memchat/memchat-backend/internal/services"
	"github.com/memchat/memchat-backend/internal/tokenizer"
)

func main() {
	conversationPath := flag.String("conversation", "",
		`JSON file with {"messages": [...]} to drive flow 1 (built-in fixture when empty)`)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	repo, err := filerepo.NewRepository(cfg.Store.Dir, logger)
	if err != nil {
		log.Fatal("Failed to initialize session store:", err)
	}

	counter := tokenizer.NewCounter(cfg.Memory.TiktokenEncoding, logger)
	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:             cfg.OpenAI.APIKey,
		Model:              cfg.OpenAI.Model,
		BaseURL:            cfg.OpenAI.BaseURL,
		RequestsPerSecond:  cfg.LLM.RequestsPerSecond,
		Burst:              cfg.LLM.Burst,
		BreakerMaxFailures: cfg.LLM.BreakerMaxFailures,
		BreakerTimeout:     cfg.LLM.BreakerTimeout,
		RequestTimeout:     cfg.LLM.RequestTimeout,
	}, logger)
	svc := services.NewServices(cfg, repo, client, counter, logger)

	messages := builtinConversation()
	if *conversationPath != "" {
		messages, err = loadConversation(*conversationPath)
		if err != nil {
			log.Fatal("Failed to load conversation:", err)
		}
	}

	ctx := context.Background()

	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("  CHAT ASSISTANT DEMO")
	fmt.Println("  Session Memory + Query Understanding Pipeline")
	fmt.Println(strings.Repeat("=", 60))

	printSeparator("FLOW 1: SESSION MEMORY TRIGGER")
	memory := runMemoryFlow(ctx, svc, cfg, messages)

	printSeparator("FLOW 2: AMBIGUOUS QUERY HANDLING")
	runAmbiguousFlow(ctx, svc, memory)

	printSeparator("FULL PIPELINE DEMO")
	runPipelineFlow(ctx, svc)

	printSeparator("DEMO COMPLETE")
	fmt.Printf("Check %s for saved session files.\n", cfg.Store.Dir)
}

// runMemoryFlow feeds the conversation into a fresh session message by
// message until the token threshold trips, then shows the summary that
// replaced the older turns.
func runMemoryFlow(ctx context.Context, svc *services.Services, cfg *config.Config, messages []models.Message) *models.SessionMemory {
	sessionID := "demo-session-memory"
	memory := models.NewSessionMemory(sessionID)

	fmt.Printf("Session ID: %s\n", sessionID)
	fmt.Printf("Token threshold: %d\n", cfg.Memory.TokenThreshold)
	fmt.Printf("\nLoading conversation with %d messages...\n", len(messages))
	fmt.Println(strings.Repeat("-", 40))

	for i, msg := range messages {
		svc.Memory.AddMessage(memory, msg)

		if (i+1)%5 == 0 || i == len(messages)-1 {
			fmt.Printf("Messages: %d/%d | Tokens: %d\n", i+1, len(messages), memory.TotalTokens)
		}

		if svc.Memory.ShouldSummarize(memory) {
			fmt.Printf("\nTOKEN THRESHOLD EXCEEDED! (%d > %d)\n", memory.TotalTokens, cfg.Memory.TokenThreshold)
			fmt.Println("Triggering summarization...")

			updated, err := svc.Summarizer.Summarize(ctx, memory)
			if err != nil {
				log.Fatal("Summarization failed:", err)
			}
			memory = updated

			fmt.Println("\nGENERATED SUMMARY:")
			fmt.Println(strings.Repeat("-", 40))
			printJSON(memory.Summary)

			fmt.Printf("\nMessage range summarized: %d-%d\n",
				memory.MessageRangeSummarized.From, memory.MessageRangeSummarized.To)
			fmt.Printf("Remaining messages: %d\n", len(memory.Messages))
			fmt.Printf("New token count: %d\n", memory.TotalTokens)
			break
		}
	}

	if err := svc.Memory.Save(ctx, memory); err != nil {
		log.Fatal("Failed to save memory:", err)
	}
	fmt.Printf("\nMemory saved for session %q\n", sessionID)
	return memory
}

// runAmbiguousFlow sends deliberately vague queries through query
// understanding against the summarized session from flow 1.
func runAmbiguousFlow(ctx context.Context, svc *services.Services, memory *models.SessionMemory) {
	queries := []string{
		"Something nice for tonight",
		"She likes the one we went to last time",
		"What about it?",
	}

	for _, query := range queries {
		fmt.Printf("\nQUERY: %q\n", query)
		fmt.Println(strings.Repeat("-", 40))

		result := svc.Query.Understand(ctx, query, memory)

		fmt.Printf("Is Ambiguous: %v\n", result.IsAmbiguous)
		if result.RewrittenQuery != nil && *result.RewrittenQuery != "" {
			fmt.Printf("Rewritten Query: %s\n", *result.RewrittenQuery)
		}
		if len(result.NeededContextFromMemory) > 0 {
			fmt.Printf("Needed from memory: %v\n", result.NeededContextFromMemory)
		}
		if len(result.ClarifyingQuestions) > 0 {
			fmt.Println("Clarifying Questions:")
			for i, q := range result.ClarifyingQuestions {
				fmt.Printf("  %d. %s\n", i+1, q)
			}
		}

		fmt.Println("\nFinal Augmented Context (truncated):")
		fmt.Println(truncate(result.FinalAugmentedContext, 300))
		fmt.Println()
	}
}

// runPipelineFlow builds a small session and shows the full understanding
// result for an ambiguous follow-up.
func runPipelineFlow(ctx context.Context, svc *services.Services) {
	sessionID := "demo-full-pipeline"
	memory := models.NewSessionMemory(sessionID)

	contextMessages := []models.Message{
		{Role: models.RoleUser, Content: "I'm looking for a laptop for programming."},
		{Role: models.RoleAssistant, Content: "I can help you find a good programming laptop! What's your budget and do you have any preferences for operating system?"},
		{Role: models.RoleUser, Content: "Around $1500, and I prefer Linux."},
		{Role: models.RoleAssistant, Content: "Great choices! For Linux development around $1500, I'd recommend looking at ThinkPad X1 Carbon or Dell XPS 15. Both have excellent Linux support."},
	}
	for _, msg := range contextMessages {
		svc.Memory.AddMessage(memory, msg)
	}

	fmt.Printf("Session ID: %s\n", sessionID)
	fmt.Printf("Context messages: %d\n", len(memory.Messages))
	fmt.Printf("Token count: %d\n", memory.TotalTokens)

	query := "What about the battery?"
	fmt.Printf("\nNew Query: %q\n", query)
	fmt.Println(strings.Repeat("-", 40))

	result := svc.Query.Understand(ctx, query, memory)

	fmt.Println("\nQuery Understanding Result:")
	printJSON(result)
}

func loadConversation(path string) ([]models.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if len(payload.Messages) == 0 {
		return nil, fmt.Errorf("no messages found in %s", path)
	}
	return payload.Messages, nil
}

func printSeparator(title string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("  %s\n", title)
	fmt.Println(strings.Repeat("=", 60) + "\n")
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal("Failed to encode JSON:", err)
	}
	fmt.Println(string(data))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// builtinConversation is a trip-planning exchange long enough to push a
// fresh session past the default token threshold, with enough preferences,
// constraints, and decisions to give the summarizer real material.
func builtinConversation() []models.Message {
	return []models.Message{
		{Role: models.RoleUser, Content: "Hi! My partner and I are planning a two-week trip to Japan in May and I have no idea where to start. We've never been to Asia before."},
		{Role: models.RoleAssistant, Content: "A two-week trip in May is a great choice, the weather is mild and Golden Week crowds thin out after the first week. To start: which cities are on your wishlist, and do you prefer a packed itinerary or a slower pace with fewer places?"},
		{Role: models.RoleUser, Content: "Definitely a slower pace. Tokyo and Kyoto for sure. My partner is vegetarian, which I hear can be tricky in Japan, so that's a real concern for us."},
		{Role: models.RoleAssistant, Content: "Slow pace with Tokyo and Kyoto works well: seven nights in Tokyo, six in Kyoto with day trips. Vegetarian dining takes planning but is very doable, shojin ryori temple cuisine in Kyoto is entirely plant-based, and Tokyo has a strong vegan scene around Shibuya and Harajuku."},
		{Role: models.RoleUser, Content: "That temple cuisine sounds amazing. Budget-wise we want to keep the whole trip under $6000 for both of us, not counting flights. Is that realistic?"},
		{Role: models.RoleAssistant, Content: "Yes, comfortably. Mid-range hotels run $120-180 per night for two, so about $2000 for thirteen nights. Budget $80-100 per day for food and local transport, plus a 7-day JR Pass at roughly $210 each for the Tokyo-Kyoto legs, and you land around $4500 with room to spare."},
		{Role: models.RoleUser, Content: "Great. We'd rather stay in one neighborhood in each city and really get to know it. For Tokyo, somewhere quieter but still connected. Any suggestions?"},
		{Role: models.RoleAssistant, Content: "Yanaka or Kagurazaka fit that brief. Yanaka is old-Tokyo with temple streets and morning markets; Kagurazaka is a former geisha quarter with French bakeries and small izakaya, on the Tozai and Oedo lines so you reach most sights in under thirty minutes."},
		{Role: models.RoleUser, Content: "Kagurazaka sounds perfect, let's lock that in. For Kyoto we'd love somewhere walkable to temples but not swamped by tour buses."},
		{Role: models.RoleAssistant, Content: "Then look at the Okazaki and Nanzenji area in eastern Kyoto. You can walk the Philosopher's Path at dawn before the crowds, Nanzenji and Eikando are on your doorstep, and the Keage subway stop connects you to the station in fifteen minutes."},
		{Role: models.RoleUser, Content: "Booked feelings already. One constraint: my partner can't do long flights without an aisle seat and gets bad jet lag, so we want the first two days very light."},
		{Role: models.RoleAssistant, Content: "Sensible. Plan day one as arrival, hotel check-in, and a short evening stroll for dinner nearby. Day two: a morning walk in the Imperial Palace East Gardens, an afternoon nap, then a relaxed izakaya dinner in Kagurazaka. Save museums and day trips for day three onward."},
		{Role: models.RoleUser, Content: "What about a day trip from Kyoto? People keep telling us Nara, but also Osaka for food. We probably only have energy for one."},
		{Role: models.RoleAssistant, Content: "Pick Nara if gardens and temples are the draw: Todaiji, the deer park, and Isuien garden make a gentle day, forty-five minutes by train. Osaka is better for street food, but vegetarian options there lean limited outside a few specialist spots, so Nara edges it for you two."},
		{Role: models.RoleUser, Content: "Nara it is. Now, cherry blossoms will be done by May, right? Is there anything seasonal we should plan around instead?"},
		{Role: models.RoleAssistant, Content: "Blossoms finish in April, but early May brings fresh green maple leaves in Kyoto's temple gardens, wisteria at Byodoin, and azaleas at Nezu Shrine in Tokyo. Aoi Matsuri, one of Kyoto's three great festivals, runs May 15 with a procession from the Imperial Palace to Kamo Shrines."},
		{Role: models.RoleUser, Content: "The festival lands inside our dates! Let's plan Kyoto around May 15 then. Should we book festival seats or just stand along the route?"},
		{Role: models.RoleAssistant, Content: "Paid seats at the Imperial Palace or Shimogamo Shrine run about 2500 yen and sell out weeks ahead; book through the Kyoto City tourism site in early April. Standing works too if you arrive an hour early along Marutamachi Street with snacks and water."},
		{Role: models.RoleUser, Content: "We'll book seats, standing for hours is exactly what we're trying to avoid. Can you remind me later to buy those in April, plus the JR Passes?"},
		{Role: models.RoleAssistant, Content: "Noted: buy Aoi Matsuri reserved seats in early April, and order JR Passes at least two weeks before departure since the exchange vouchers ship physically. Also book the Kagurazaka and Okazaki hotels this month, May fills early in both neighborhoods."},
		{Role: models.RoleUser, Content: "One more thing, we don't drive and my partner gets motion sick on buses. Does that break any part of this plan?"},
		{Role: models.RoleAssistant, Content: "No part of the plan needs a car or a long bus ride. Tokyo and the Kyoto areas chosen are all rail and walking; Nara is a direct train. Within Kyoto, stick to the subway and short taxi hops instead of the crowded city buses and you avoid the issue entirely."},
		{Role: models.RoleUser, Content: "Perfect. Last question for now: etiquette things we should know so we don't embarrass ourselves at temples or restaurants?"},
		{Role: models.RoleAssistant, Content: "A few cover most situations: shoes off wherever you see a raised floor or lockers, no photos where signs show a crossed-out camera, pass money on the small tray rather than hand to hand, slurping noodles is fine, tipping is not done, and at shrines bow twice, clap twice, bow once."},
	}
}
