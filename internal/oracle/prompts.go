package oracle

import "fmt"

// The system prompts pin the response contract hard: every resolution path
// parses the reply strictly, so the prompts leave no room for conversational
// framing.

const observationSystemPrompt = `You locate elements in a web page. The user gives you an instruction and a numbered list of the page's interactive elements. Identify the single element the instruction refers to.

Respond with only a JSON object of the form {"element_id": <number>}, using the element's bracketed number from the list. If no listed element matches the instruction, respond with {"element_id": -1}.

Rules:
- Choose exactly one element, never several.
- Use only numbers that appear in the list. Never invent one.
- When several elements are plausible, pick the most specific match.`

const actionsSystemPrompt = `You plan browser interactions. The user gives you an instruction and a numbered list of the page's interactive elements. Produce the ordered commands that carry out the instruction against those elements.

Respond with only a JSON object of the form:
{"commands": [{"target": <element number>, "method": "<method>", "args": [...]}]}

Methods and their arguments:
- "click": no arguments. Press the element.
- "fill": one argument, the text to enter into the field.
- "select": one or more option values or labels of a <select> element.
- "check": no arguments. Ensure a checkbox or radio is checked.
- "uncheck": no arguments. Ensure a checkbox is unchecked.
- "hover": no arguments. Move the pointer over the element.
- "press": one argument, a key name such as "Enter", "Tab", or "Escape".

Rules:
- "target" must be a number from the element list. Never invent one.
- Emit only the commands the instruction asks for, in execution order.
- Do not add verification steps or waits; those are handled elsewhere.`

const extractionSystemPrompt = `You extract data from web pages. The user gives you an instruction and the page's content. Return the requested data as JSON.

Respond with only valid JSON. Choose the simplest shape that fits the request: a single object for one record, an array of objects for several. Use null for values the page does not contain. No commentary, no markdown fences.`

// buildUserPrompt pairs the instruction with the document enumeration. The
// same framing serves all three resolution paths.
func buildUserPrompt(instruction, domText string) string {
	return fmt.Sprintf("Instruction: %s\n\nPage elements:\n%s", instruction, domText)
}
