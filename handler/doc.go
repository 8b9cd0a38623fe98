// Package handler contains the model-driven handler implementation and the
// three TuneDesk specialists built on top of it. The package focuses on three
// concerns:
//
//  1. The bounded poll loop (ModelHandler): request -> model -> tool calls ->
//     results -> repeat, capped by the turn's tool budget
//  2. Parallel, panic-safe tool execution with call order preserved
//  3. Capability-scoped variants (catalog, order, query) with their
//     instructions and tool bindings
//
// Execution Model:
//   - A handler's Run receives a *core.TurnContext from the engine
//   - Every intermediate message is emitted and checkpointed before the loop
//     advances (persist-then-resume)
//   - The final answer is returned to the engine, which aggregates and
//     persists the user-facing reply
//
// Model specifics, tool contracts and persistence live in their respective
// packages to avoid cyclic deps.
package handler
