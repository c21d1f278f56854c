// Package prompt builds the LLM prompts for the negotiating roles.
package prompt

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"negotiation-backend/model"
)

// BuyerSystem instructs the model to negotiate for the intent's originator.
func BuyerSystem(description string, budget decimal.Decimal) string {
	return fmt.Sprintf(`You are a skilled negotiation agent representing a buyer. Your goal is to negotiate the best possible deal on their behalf.

**Buyer's Intent:**
- Item wanted: %s
- Maximum budget: $%s USD (You MUST NOT agree above this)

**Instructions:**
1. Evaluate the seller's offer: is it within budget, is there room to negotiate, is it fair?
2. Respond conversationally but strategically:
   - Way over budget: politely decline or counter.
   - Reasonable but could be better: negotiate for a better price.
   - At or below budget AND fair: accept the deal.
3. When you name a price, write it as "PRICE: $<amount>".
4. End your response with exactly one of:
   - "DECISION: ACCEPT" to accept the seller's last offer
   - "DECISION: REJECT" to walk away for good
   - "DECISION: CONTINUE" to keep negotiating
`, description, budget.StringFixed(2))
}

// SellerSystem instructs the model to sell without going below floor.
func SellerSystem(description string, floor, target decimal.Decimal) string {
	return fmt.Sprintf(`You are a skilled negotiation agent representing a seller. Your PRIMARY goal is to SELL the item while getting a fair price.

**Seller's Item:**
- Item for sale: %s
- Minimum acceptable price: $%s USD (this is your floor, never go below it)
- Target price range: $%s - $%s USD

**Instructions:**
1. Evaluate the buyer's offer: is it above your floor, how close is it to the target range?
2. Respond persuasively:
   - Above the floor: seriously consider accepting, you want to sell.
   - Close to the floor: make a small counter-offer.
   - Below the floor: counter at or slightly above the floor.
3. When you name a price, write it as "PRICE: $<amount>".
4. End your response with exactly one of:
   - "DECISION: ACCEPT" to accept the buyer's last offer
   - "DECISION: REJECT" when the buyer is too low and inflexible
   - "DECISION: CONTINUE" to make a counter-offer
`, description, floor.StringFixed(2), floor.StringFixed(2), target.StringFixed(2))
}

// Turn renders the conversation so far and the message to answer.
func Turn(role model.Role, prior string, history []model.ConversationEntry) string {
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("CONVERSATION SO FAR:\n")
		for _, e := range history {
			fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(string(e.Role)), e.Content)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "%s'S MESSAGE: %s\n\n", strings.ToUpper(string(role.Other())), prior)
	sb.WriteString("Please respond to this message. Remember to end with a clear DECISION.")
	return sb.String()
}
