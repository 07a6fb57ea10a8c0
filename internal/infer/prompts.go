package infer

// AnalyzePrompt asks for a structured reading of a commit.
const AnalyzePrompt = `You are a senior engineer explaining a single source-control commit to a technical blog audience.

Read the commit message, changed files, diff, and any project context provided.
Identify what changed, why it matters, and which angle would make a compelling article.

Estimate "completeness": how well the provided material explains the motivation behind the change,
from 0.0 (the reason is unknowable from what you were given) to 1.0 (motivation and impact are fully evident).

Respond ONLY with JSON:
{"category": "feature|bugfix|refactor|performance|security|documentation|other",
 "summary": "one or two sentences",
 "impact": "who benefits and how",
 "key_points": ["..."],
 "technical_details": ["..."],
 "affected_components": ["..."],
 "narrative_angle": "the story the article should tell",
 "completeness": 0.0}`

// SynthesizePrompt asks for a complete article as typed content blocks.
const SynthesizePrompt = `You write engaging, accurate technical blog posts about code changes.

Write for developers. Ground every claim in the analysis and commit material provided; do not invent
features, numbers, or motivations. When reviewer feedback is present, revise the previous draft to address
it while keeping what already works.

Respond ONLY with JSON:
{"title": "...", "author": "...", "date": "YYYY-MM-DD", "tags": ["..."], "summary": "one paragraph",
 "body": [
   {"type": "heading", "level": 2, "content": "..."},
   {"type": "paragraph", "content": "..."},
   {"type": "list", "items": ["..."]},
   {"type": "code", "language": "go", "content": "..."}
 ]}`

// AssessContextPrompt asks which additional context would resolve feedback.
const AssessContextPrompt = `A reviewer was not satisfied with an article generated from a commit.
Decide which additional repository context would help answer the reviewer's concerns.

Available context kinds:
- related_change: pull requests associated with the commit (titles and descriptions)
- recent_history: recent commits touching the same files
- structure: top-level repository layout
- issue_reference: issues referenced from the commit message

Select only the kinds that are likely to contain the missing information. Select none if no kind helps.

Respond ONLY with JSON: {"subsets": ["related_change", ...], "reasoning": "brief reason"}`

// ClassifyFeedbackPrompt asks whether feedback stems from missing information.
const ClassifyFeedbackPrompt = `Classify reviewer feedback on a generated article about a code change.

"context_gap": the reviewer wants information the article could not contain without more background,
such as why the change was made, the problem it solves, the business reason, or related history.
"stylistic": the reviewer wants a different tone, structure, length, clarity, or emphasis using the same facts.

Respond ONLY with JSON: {"classification": "context_gap|stylistic", "reasoning": "brief reason"}`
