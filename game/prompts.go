package game

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/google/uuid"
)

var promptDeck = []string{
	"What is a small thing that made you happy this week?",
	"If you could master any skill overnight, what would it be?",
	"What is the best piece of advice you have ever received?",
	"Describe your perfect weekend in three words.",
	"Which fictional world would you most like to live in?",
	"What song do you never skip?",
	"What is a food you could eat every day?",
	"What is the most spontaneous thing you have ever done?",
	"Are you a morning person or a night owl, and why?",
	"What hobby would you pick up if time and money were no object?",
	"Where is the best place you have ever traveled?",
	"What is something you believed as a kid that turned out to be wrong?",
	"Which three people, alive or not, would you invite to dinner?",
	"What is a movie you can watch again and again?",
	"What would your ideal job look like?",
	"What is the last thing that made you laugh out loud?",
	"What is a cause you care deeply about?",
	"Beach holiday or mountain cabin?",
	"What is a book that changed the way you think?",
	"What does a great friendship look like to you?",
	"What is your go-to comfort activity after a long day?",
	"What is a skill you are proud of that few people know about?",
	"If you could live in any decade, which would you choose?",
	"What is one thing on your bucket list?",
	"What are you currently learning or curious about?",
	"What is your favorite way to spend a rainy afternoon?",
	"Cats, dogs, or neither?",
	"What is a tradition you love?",
	"What superpower would be the most useful in your daily life?",
	"What is something that always gets you talking for hours?",
}

// DrawPrompts picks n prompts for a session. The draw is derived from the
// session id, so a session always sees the same prompts in the same order.
func DrawPrompts(sessionID uuid.UUID, n int) []string {
	if n <= 0 {
		return nil
	}

	seed1 := binary.BigEndian.Uint64(sessionID[:8])
	seed2 := binary.BigEndian.Uint64(sessionID[8:])
	rng := rand.New(rand.NewPCG(seed1, seed2))

	order := rng.Perm(len(promptDeck))
	prompts := make([]string, n)
	for i := range prompts {
		prompts[i] = promptDeck[order[i%len(order)]]
	}
	return prompts
}
