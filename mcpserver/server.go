// ABOUTME: MCP server exposing one canvas session as tools for assistants: inspect, edit, connect, generate.
// ABOUTME: Tools map onto the canvas store and generation machine; rejected operations become tool errors.

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389-research/flowcanvas/canvas"
	"github.com/2389-research/flowcanvas/generation"
	"github.com/2389-research/flowcanvas/graph"
	"github.com/2389-research/flowcanvas/graph/validator"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// StateURI is the resource holding the current canvas state as JSON.
const StateURI = "flowcanvas://state"

// Server wraps a canvas and its generation machine as an MCP server.
type Server struct {
	canvas    *canvas.Store
	machine   *generation.Machine
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// New creates a server for store and machine. machine may be nil, which
// disables the submit and cancel tools.
func New(store *canvas.Store, machine *generation.Machine, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		canvas:  store,
		machine: machine,
		logger:  logger,
		mcpServer: server.NewMCPServer("flowcanvas", version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server for alternative transports.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Return the canvas nodes, edges, selection, and undo availability as JSON."),
	), s.handleGetState)

	s.mcpServer.AddTool(mcp.NewTool("validate",
		mcp.WithDescription("Lint the canvas graph and return diagnostics."),
	), s.handleValidate)

	s.mcpServer.AddTool(mcp.NewTool("add_node",
		mcp.WithDescription("Add a node. Categories: text, image, text-to-image, image-to-image, text-to-video, image-to-video, render."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Node category")),
		mcp.WithNumber("x", mcp.Description("Canvas X position")),
		mcp.WithNumber("y", mcp.Description("Canvas Y position")),
		mcp.WithString("data", mcp.Description("JSON object of node data, e.g. {\"content\":\"a red fox\"}")),
	), s.handleAddNode)

	s.mcpServer.AddTool(mcp.NewTool("update_node",
		mcp.WithDescription("Patch a node's authored data. Upstream-derived fields cannot be set."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithString("data", mcp.Required(), mcp.Description("JSON object of fields to change")),
	), s.handleUpdateNode)

	s.mcpServer.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node to a new canvas position."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("Canvas X position")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Canvas Y position")),
	), s.handleMoveNode)

	s.mcpServer.AddTool(mcp.NewTool("remove_node",
		mcp.WithDescription("Remove a node and every edge touching it."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
	), s.handleRemoveNode)

	s.mcpServer.AddTool(mcp.NewTool("connect",
		mcp.WithDescription("Connect a producer's output to a target input. Handles may be omitted to use the first compatible input."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source node ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target node ID")),
		mcp.WithString("source_handle", mcp.Description("Source output port")),
		mcp.WithString("target_handle", mcp.Description("Target input port")),
	), s.handleConnect)

	s.mcpServer.AddTool(mcp.NewTool("disconnect",
		mcp.WithDescription("Remove an edge by ID."),
		mcp.WithString("edge_id", mcp.Required(), mcp.Description("Edge ID")),
	), s.handleDisconnect)

	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last graph change."),
	), s.handleUndo)

	s.mcpServer.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone graph change."),
	), s.handleRedo)

	if s.machine == nil {
		return
	}

	s.mcpServer.AddTool(mcp.NewTool("submit",
		mcp.WithDescription("Start a generation from a generator node, or regenerate from a render node. Returns the render node ID."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Generator or render node ID")),
	), s.handleSubmit)

	s.mcpServer.AddTool(mcp.NewTool("cancel",
		mcp.WithDescription("Cancel an in-flight generation by generator or render node ID."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Generator or render node ID")),
	), s.handleCancel)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StateURI, "Current canvas state",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(s.canvas.GetState())
		if err != nil {
			return nil, fmt.Errorf("encode state: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: StateURI, MIMEType: "application/json", Text: string(b)},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// parseData decodes an optional JSON object argument.
func parseData(request mcp.CallToolRequest) (map[string]any, error) {
	raw := request.GetString("data", "")
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("data must be a JSON object: %w", err)
	}
	return m, nil
}

func (s *Server) rejected(tool, msg string) (*mcp.CallToolResult, error) {
	s.logger.Debug("mcp tool rejected", zap.String("tool", tool), zap.String("reason", msg))
	return mcp.NewToolResultError(msg), nil
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.canvas.GetState())
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.canvas.Snapshot()
	diags := validator.Lint(snap.Nodes, snap.Edges)
	if diags == nil {
		diags = []validator.Diagnostic{}
	}
	return jsonResult(map[string]any{"valid": !validator.HasErrors(diags), "diagnostics": diags})
}

func (s *Server) handleAddNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cat, err := graph.ParseCategory(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := parseData(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := graph.DecodeData(m)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos := graph.Position{X: request.GetFloat("x", 0), Y: request.GetFloat("y", 0)}
	id := s.canvas.AddNode(cat, pos, data)
	if id == "" {
		return s.rejected("add_node", "node could not be added")
	}
	return jsonResult(map[string]string{"id": id})
}

func (s *Server) handleUpdateNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := parseData(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patch, err := graph.DecodePatch(m)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.canvas.UpdateNode(id, patch) {
		return s.rejected("update_node", "node not found or patch changes nothing: "+id)
	}
	n, _ := s.canvas.Node(id)
	return jsonResult(n)
}

func (s *Server) handleMoveNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	x, err := request.RequireFloat("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := request.RequireFloat("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.canvas.MoveNode(id, graph.Position{X: x, Y: y}) {
		return s.rejected("move_node", "node not found or already there: "+id)
	}
	return mcp.NewToolResultText("moved " + id), nil
}

func (s *Server) handleRemoveNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.canvas.RemoveNode(id) {
		return s.rejected("remove_node", "node not found: "+id)
	}
	return mcp.NewToolResultText("removed " + id), nil
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := s.canvas.Connect(source, request.GetString("source_handle", ""), target, request.GetString("target_handle", ""))
	if id == "" {
		return s.rejected("connect", fmt.Sprintf("cannot connect %s to %s", source, target))
	}
	return jsonResult(map[string]string{"id": id})
}

func (s *Server) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("edge_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.canvas.Disconnect(id) {
		return s.rejected("disconnect", "edge not found: "+id)
	}
	return mcp.NewToolResultText("disconnected " + id), nil
}

func (s *Server) handleUndo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.canvas.Undo() {
		return s.rejected("undo", "nothing to undo")
	}
	return jsonResult(s.canvas.GetState())
}

func (s *Server) handleRedo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.canvas.Redo() {
		return s.rejected("redo", "nothing to redo")
	}
	return jsonResult(s.canvas.GetState())
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sink, ok := s.machine.Submit(ctx, id)
	if !ok {
		return s.rejected("submit", "generation inputs are not satisfied or the node is already generating: "+id)
	}
	return jsonResult(map[string]string{"sinkId": sink})
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.machine.Cancel(id) {
		return s.rejected("cancel", "node is not generating: "+id)
	}
	return mcp.NewToolResultText("cancelled " + id), nil
}
