package graph

// Router is a pure function of State: it never performs I/O and never
// mutates its argument.
//
//   - After NodeLLM: the last assistant message carries tool_calls → NodeTool;
//     otherwise → NodeEnd, even when its text content is empty.
//   - After NodeTool: always → NodeLLM, so the model observes every
//     tool result before it speaks again.
//   - Any other node → NodeEnd. Route is not consulted for the first
//     node: the executor starts every run at NodeLLM.
func Route(current NodeID, s *State) NodeID {
	switch current {
	case NodeLLM:
		last, ok := s.lastAssistantMessage()
		if !ok || len(last.ToolCalls) == 0 {
			return NodeEnd
		}
		return NodeTool
	case NodeTool:
		return NodeLLM
	default:
		return NodeEnd
	}
}
