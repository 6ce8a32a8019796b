// Package analyze classifies regulation records against the Pahlka
// red-flag framework with an LLM, persists verdicts in a Badger result
// store keyed by URL, and snapshots the accumulated results to CSV. The
// store is what makes the stage resumable: a URL with a stored verdict is
// never sent to the model again.
package analyze

import (
	"fmt"
	"strings"

	"reg-scraper/pkg/models"
)

// frameworkPrompt describes the red-flag patterns and the severity rubric.
// The identifiers the model may use are appended by systemPrompt.
const frameworkPrompt = `You are analyzing New York State regulations for problematic patterns that make government less effective for citizens. Your analysis should focus on identifying the REALLY BAD STUFF - the patterns that create unnecessary barriers, complexity, and poor outcomes for people trying to access government services.

Based on Jennifer Pahlka's framework, look for these red flag patterns in the regulatory text:

**COMPLEXITY & POLICY DEBT:**
- Cross-reference spaghetti: Excessive references to other sections, creating complexity
- Accreted conditions: Layer upon layer of added requirements over time

**OPTIONS BECOMING REQUIREMENTS:**
- Security controls "menus" that become checklists in practice
- "Factors to consider" lists that get treated as mandatory requirements

**SEPARATION OF POLICY FROM IMPLEMENTATION:**
- Policy makers completely separated from people who actually deliver services
- Design and operations artificially separated

**OVERWROUGHT LEGALESE:**
- Needlessly complex eligibility language that could be plain English
- Requirements that make user research and feedback practically impossible

**CASCADE OF RIGIDITY:**
- Too many absolute, un-prioritized goals that create impossible trade-offs
- "Comply with all applicable everything" language that creates defensive behavior
- Automatic addition of new procedures after any incident

**MANDATED STEPS VS OUTCOMES:**
- Heavy focus on specific procedures rather than results
- Step-by-step checklists without success metrics

**ADMINISTRATIVE BURDENS:**
- In-person only requirements for things that could be done remotely
- Redundant, hard-to-get documentation requirements
- Unrealistic deadlines that lead to denials by default

**NO LEARNING/FEEDBACK:**
- One-shot programs with no mechanism for improvement
- Oversight focused only on rule-following, not outcomes

**MAXIMALIST SAFETY:**
- Zero-risk language that prevents reasonable trade-offs
- Security requirements with no proportionality

**TECHNOLOGY CONSTRAINTS:**
- Frozen architecture requirements that prevent adaptation

Focus on regulations that would make Jennifer Pahlka say "This is exactly the kind of thing that makes government not work for people."

**CRITICAL: Always provide a severity score 0-10:**
- 0-3: Minor issues, mostly fine
- 4-6: Moderate problems, some barriers to effectiveness
- 7-8: Significant red flags, likely creates real problems for citizens
- 9-10: Poster child for everything wrong with how government writes rules

**Severity 9-10 indicators (the worst of the worst):**
- Creates impossible catch-22s for citizens
- Requirements that guarantee failure by design
- Cross-reference chains impossible to follow
- Deadlines/processes mathematically impossible to meet
- Systems designed to exhaust people into giving up

Be especially alert to regulations that:
- Create unnecessary complexity for end users
- Prioritize process compliance over helping people
- Make it hard for government workers to use common sense
- Set up systems designed to deny rather than approve
- Prevent learning and iteration

**Always return a severity score even if no red flags are found (score would be 0-1).**`

// responseContract pins the JSON shape; the model runs in JSON mode, so
// this is the whole output schema.
const responseContract = `Respond with a single JSON object and nothing else:
{
  "red_flags": [],                // zero or more identifiers from the list below
  "specific_text_examples": [],   // short verbatim excerpts supporting the flags
  "severity_score": 0             // integer 0-10
}

Allowed red_flags identifiers:
%s`

// systemPrompt assembles the full system message: framework, rubric, and
// the closed identifier set.
func systemPrompt() string {
	identifiers := make([]string, len(models.AllRedFlagTypes))
	for i, flag := range models.AllRedFlagTypes {
		identifiers[i] = string(flag)
	}
	return frameworkPrompt + "\n\n" + fmt.Sprintf(responseContract, strings.Join(identifiers, "\n"))
}

// userPrompt wraps the (already token-budgeted) regulation content.
func userPrompt(content string) string {
	return "Analyze this regulation content for red flag patterns:\n\n" + content
}
