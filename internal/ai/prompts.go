package ai

import "fmt"

// Function is a named generation step. The model is asked to behave like
// the described function and print only its return value.
type Function struct {
	Name        string
	Instruction string
}

// Message wraps the function instruction and its input into the single
// system message sent for this step.
func (f Function) Message(input string) Message {
	return Message{
		Role: RoleSystem,
		Text: fmt.Sprintf(`FUNCTION: %s
INSTRUCTION: You are a function printer. You ONLY print the results of functions.
Nothing else. No commentary. Here is the input to the function: %s.
Print out what the function will return.`, f.Instruction, input),
	}
}

var ConvertUserInputToGoal = Function{
	Name: "convert_user_input_to_goal",
	Instruction: `INPUT: a user request for a website or web service.
FUNCTION: rewrite the request as a concise goal statement for a developer.
OUTPUT: a single sentence starting with "build a website that ...".`,
}

var DecideProjectScope = Function{
	Name: "decide_project_scope",
	Instruction: `INPUT: a project description.
FUNCTION: decide what the backend of this project requires.
OUTPUT: only a JSON object with exactly these boolean keys:
{"is_crud_required": bool, "is_user_login_and_logout": bool, "is_external_urls_required": bool}
"is_external_urls_required" is true only when the project must fetch data from public third party APIs.`,
}

var ListExternalURLs = Function{
	Name: "list_external_urls",
	Instruction: `INPUT: a project description.
FUNCTION: list public API endpoint URLs the backend could call to satisfy the description.
Only include URLs that need no API key and answer a plain GET request.
OUTPUT: only a JSON array of URL strings, for example ["https://api.binance.com/api/v3/exchangeInfo"].`,
}

var WriteBackendCode = Function{
	Name: "write_backend_code",
	Instruction: `INPUT: a PROJECT_DESCRIPTION and a CODE_TEMPLATE for a website backend.
FUNCTION: rewrite the CODE_TEMPLATE so it implements the PROJECT_DESCRIPTION.
The template is an example; change as much as the description requires.
Only use libraries the template already uses.
The server must listen on the address used in the template.
OUTPUT: only the code, nothing else.`,
}

var ImproveBackendCode = Function{
	Name: "improve_backend_code",
	Instruction: `INPUT: a PROJECT_DESCRIPTION and the current CODE_TEMPLATE of a website backend.
FUNCTION: remove bugs, add anything the description asks for that is missing,
and keep every library import unchanged. Nothing is left for later.
OUTPUT: only the code, nothing else.`,
}

var FixBackendCode = Function{
	Name: "fix_backend_code",
	Instruction: `INPUT: BROKEN_CODE and the ERROR_BUGS reported by the compiler.
FUNCTION: fix the code so it compiles.
OUTPUT: only the complete fixed code, nothing else.`,
}

var ExtractRESTEndpoints = Function{
	Name: "extract_rest_endpoints",
	Instruction: `INPUT: the CODE_INPUT of a web server.
FUNCTION: print the JSON schema of every URL endpoint in the code.
Each endpoint is an object with these keys:
  "route": the url path,
  "is_route_dynamic": "true" when the path holds a parameter such as {id}, else "false",
  "method": the lower case http method,
  "request_body": "None" or an object of field name to type name,
  "response": "None" or an object of field name to type name.
Every value is a string, booleans included.
EXAMPLE OUTPUT:
[
  {"route": "/item/{id}", "is_route_dynamic": "true", "method": "get", "request_body": "None", "response": {"id": "number", "name": "string"}},
  {"route": "/item", "is_route_dynamic": "false", "method": "post", "request_body": {"id": "number", "name": "string"}, "response": "None"}
]
OUTPUT: only the JSON array.`,
}
