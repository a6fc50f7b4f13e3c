package deck

import (
	"fmt"
	"strings"
)

const planningPromptTemplate = `You are a presentation planning expert. Analyze the presentation request below and produce a detailed content plan.

Title: %s
Message/Content: %s

Decide which topics, facts, examples and statistics would make this presentation informative and engaging. For each content item, decide whether it needs a lookup of current or factual information or whether general knowledge is enough.

Respond with JSON using exactly this structure:

{
  "presentation_overview": "Brief description of what this presentation should cover",
  "target_audience": "Who this presentation is for",
  "key_themes": ["theme1", "theme2", "theme3"],
  "content_items": [
    {
      "topic": "Specific topic or section",
      "needs_search": true,
      "search_query": "Specific search query if needs_search is true",
      "context": "Additional context or angle to focus on",
      "slide_type": "title|bullet|text|image|code|quote|split|comparison",
      "priority": "high|medium|low"
    }
  ]
}

Rules:
- Include 6-10 content items
- Set needs_search to true for current events, statistics, recent developments, factual data, market information and news
- Set needs_search to false for general concepts, explanations, theoretical or creative content
- Give a specific search query whenever needs_search is true
- Suggest a slide type for every content item
- Prioritize items; high priority items get more detailed treatment

Return ONLY valid JSON with no additional text or formatting.`

func planningPrompt(title, message string) string {
	return fmt.Sprintf(planningPromptTemplate, title, message)
}

func searchPrompt(topic, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research and provide comprehensive information about: %s\n\n", topic)
	fmt.Fprintf(&b, "Search query: %s\n\n", query)
	b.WriteString("Provide detailed, accurate and up-to-date information that would be useful for a presentation slide about this topic. ")
	b.WriteString("Include key facts, statistics, examples and important details.\n\n")
	b.WriteString("IMPORTANT: End your response with a section starting with '" + sourcesMarker + "' listing every source you used. ")
	b.WriteString("Include website URLs, publication names, dates or other source details, one source per line.")
	return b.String()
}

func knowledgePrompt(topic, context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate comprehensive content about: %s\n\n", topic)
	if strings.TrimSpace(context) != "" {
		fmt.Fprintf(&b, "Context: %s\n\n", context)
	}
	b.WriteString("Provide detailed information that would be useful for a presentation slide about this topic. ")
	b.WriteString("Include key points, explanations and relevant details.")
	return b.String()
}

func researchDigest(items []ResearchedItem) string {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "Topic: %s\n", item.Topic)
		fmt.Fprintf(&b, "Content: %s\n", item.Content)
		if len(item.Sources) > 0 {
			fmt.Fprintf(&b, "Sources: %s\n", strings.Join(item.Sources, "; "))
		}
		b.WriteString("---\n")
	}
	return b.String()
}

const assemblyPromptTemplate = `You are a professional presentation creator. Build a presentation from the information below.

Title: %s
Original Message: %s

RESEARCHED CONTENT:
%s
Create 6-10 slides using the researched content above.

JSON FORMATTING REQUIREMENTS:
- Return ONLY a JSON object of the form {"slides": [ ... ]}
- No additional text, explanations or markdown code blocks
- Use double quotes for all strings
- Escape special characters: newlines as \n, quotes as \", backslashes as \\, tabs as \t
- No literal newlines inside JSON strings
- Separate array elements with commas

SLIDE TYPES AND STRUCTURE:

1. title: {"type": "title", "title": "...", "content": {"subtitle": "Optional subtitle"}}
2. bullet: {"type": "bullet", "title": "...", "content": {"bullets": [{"text": "**Bold** or regular text", "indent": 0}, {"text": "Indented point", "indent": 1}]}}
3. text: {"type": "text", "title": "...", "content": {"text": "Paragraphs with **bold**, *italic*, lists and ## subheadings separated by \n", "sources": ["Source 1", "Source 2"]}}
4. image: {"type": "image", "title": "...", "content": {"url": "https://via.placeholder.com/800x600", "caption": "Optional caption"}}
5. code: {"type": "code", "title": "...", "content": {"code": "console.log('Hello World');", "language": "javascript", "filename": "example.js"}}
6. quote: {"type": "quote", "title": "...", "content": {"quote": "Quote text, markdown allowed", "author": "Author Name", "source": "Source/Context"}}
7. split: {"type": "split", "title": "...", "content": {"leftContent": "Markdown for the left side", "rightContent": "Markdown for the right side"}}
8. comparison: {"type": "comparison", "title": "...", "content": {"leftTitle": "Left Column", "rightTitle": "Right Column", "leftItems": ["**Strong benefit**", "*Key point*"], "rightItems": ["**Drawback**", "*Concern*"]}}

CONTENT GUIDELINES:
- Every slide MUST have "type" and "title" fields
- Use specific facts, statistics and details from the researched content
- Include the "sources" array on text slides built from researched content with sources
- Flow from introduction to conclusion
- Markdown (**bold**, *italic*, ## headers, - lists, > quotes) is allowed inside string fields
- Use \n to separate lines in multi-line content

EXAMPLE VALID OUTPUT:
{"slides":[{"type":"title","title":"Presentation Title","content":{"subtitle":"Subtitle here"}},{"type":"text","title":"First Topic","content":{"text":"First paragraph.\n\nSecond paragraph with **bold text**.","sources":["Source 1"]}}]}

Your response must be ONLY the JSON object.`

func assemblyPrompt(title, message string, items []ResearchedItem) string {
	return fmt.Sprintf(assemblyPromptTemplate, title, message, researchDigest(items))
}
