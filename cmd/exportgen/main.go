package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/poiesic/recollect/telegram"
)

var lines = []string{
	"Morning all, standup in five.",
	"Did anyone look at the flaky checkout test yet?",
	"The deploy to staging just finished, smoke tests are green.",
	"I think the cache invalidation bug is back.",
	"Can someone review my branch before lunch?",
	"The database migration took 40 minutes, way longer than expected.",
	"Lunch at the usual place?",
	"I pushed a fix for the pagination issue.",
	"The new API key rotation script works, tested it on dev.",
	"Search latency spiked again around 14:00, checking the dashboards.",
	"Who owns the metrics exporter these days?",
	"I'll be out tomorrow afternoon, dentist.",
	"The customer from yesterday confirmed the workaround helps.",
	"Build 1443 failed on the arm runner only, rerunning.",
	"We should bump the client timeout, 2 seconds is too tight.",
	"Reminder: feature freeze starts Monday.",
	"The retry storm was our own healthcheck, not real traffic.",
	"Merged and tagged v2.3.1, release notes are in the doc.",
	"Anyone else seeing certificate warnings on the internal registry?",
	"The queue backlog cleared overnight on its own.",
	"I rewrote the batching logic, throughput doubled on the bench.",
	"Heads up, the office network goes down for maintenance at 18:00.",
	"Found it, a goroutine leak in the websocket handler.",
	"Can we move the retro to Thursday?",
	"The vendor finally answered, the rate limit is per key not per org.",
	"Backup restore drill passed, 22 minutes end to end.",
	"That log line fires four million times a day, demoting it to debug.",
	"The intern's dashboard is actually really good.",
	"Config typo, the worker pool was set to 1 this whole time.",
	"Happy Friday, no deploys after 15:00 please.",
	"The spike investigation doc is updated with the flame graphs.",
	"Rolled back, error rate is back to baseline.",
	"New laptop day, half my dotfiles are gone.",
	"The alert was a false positive, threshold fixed.",
	"Coffee machine on the third floor is broken again.",
	"I can pair on the parser rewrite after 14:00.",
	"Disk usage on the log host hit 90 percent, rotating now.",
	"The demo went well, they asked about the export feature twice.",
	"Let's keep the old endpoint alive one more release.",
	"Tests pass locally but not in CI, classic.",
	"The onboarding doc still references the old VPN, fixing.",
	"Postmortem draft is ready for comments.",
	"Switching the staging cluster to the new node pool tonight.",
	"That query needed an index, 8 seconds down to 40 milliseconds.",
	"Who wants the last conference ticket?",
	"The feature flag is live for 5 percent of users.",
	"Good catch, the timezone conversion ate an hour.",
	"Closing the incident, summary in the channel topic.",
}

var names = []string{
	"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi",
	"Ivan", "Judy", "Mallory", "Nina", "Oscar", "Peggy", "Rupert", "Sybil",
}

var actions = []string{
	"join_group_by_link",
	"invite_members",
	"pin_message",
	"edit_group_title",
}

var (
	msgCount = flag.Int("count", 200, "number of records to generate")
	senders  = flag.Int("senders", 4, "number of distinct senders")
	seed     = flag.Int64("seed", 42, "random seed")
	output   = flag.String("output", "export.json", "output file path")
	chatName = flag.String("name", "synthetic-chat", "chat name in the export header")
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// record is one export entry with absent keys omitted, matching what
// Telegram Desktop writes.
type record struct {
	ID               int64  `json:"id"`
	Type             string `json:"type"`
	Date             string `json:"date"`
	DateUnix         string `json:"date_unixtime"`
	From             string `json:"from,omitempty"`
	FromID           string `json:"from_id,omitempty"`
	Actor            string `json:"actor,omitempty"`
	ActorID          string `json:"actor_id,omitempty"`
	Action           string `json:"action,omitempty"`
	Text             any    `json:"text"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

type export struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	ID       int64    `json:"id"`
	Messages []record `json:"messages"`
}

const dateLayout = "2006-01-02T15:04:05"

func main() {
	rng := rand.New(rand.NewSource(*seed))

	n := *senders
	if n < 1 {
		n = 1
	}
	if n > len(names) {
		n = len(names)
	}

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	records := make([]record, 0, *msgCount)

	for i := 0; i < *msgCount; i++ {
		id := int64(i + 1)

		// An occasional burst gap jumps well past any plausible thread
		// window so the output splits into multiple conversations.
		if i > 0 && rng.Intn(20) == 0 {
			ts = ts.Add(time.Duration(10+rng.Intn(110)) * time.Minute)
		} else {
			ts = ts.Add(time.Duration(5+rng.Intn(85)) * time.Second)
		}

		rec := record{
			ID:       id,
			Date:     ts.Format(dateLayout),
			DateUnix: strconv.FormatInt(ts.Unix(), 10),
		}

		who := rng.Intn(n)
		if rng.Intn(30) == 0 {
			rec.Type = telegram.TypeService
			rec.Actor = names[who]
			rec.ActorID = fmt.Sprintf("user%07d", who+1)
			rec.Action = actions[rng.Intn(len(actions))]
			rec.Text = ""
		} else {
			rec.Type = telegram.TypeMessage
			rec.From = names[who]
			rec.FromID = fmt.Sprintf("user%07d", who+1)
			rec.Text = pickText(rng)
			if id > 3 && rng.Intn(5) == 0 {
				back := int64(1 + rng.Intn(10))
				if back >= id {
					back = id - 1
				}
				rec.ReplyToMessageID = id - back
			}
		}

		records = append(records, rec)
	}

	out := export{
		Name:     *chatName,
		Type:     "private_supergroup",
		ID:       1234567890,
		Messages: records,
	}

	f, err := os.Create(*output)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", " ")
	if err := enc.Encode(out); err != nil {
		panic(err)
	}

	slog.Info("export written", "path", *output, "records", len(records))
}

// pickText returns a plain string most of the time and occasionally the
// entity-array form Telegram uses for formatted text.
func pickText(rng *rand.Rand) any {
	line := lines[rng.Intn(len(lines))]
	if rng.Intn(12) != 0 {
		return line
	}
	return []any{
		line + " ",
		map[string]any{
			"type": "link",
			"text": fmt.Sprintf("https://ci.example.com/build/%d", 1000+rng.Intn(9000)),
		},
	}
}
