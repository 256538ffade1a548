package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/DHvyas/votales-api/pkg/tracing"
)

// Node types. The type tag is an explicit property so the single-root and
// single-incoming-edge invariants are checkable independently of edge state.
const (
	NodeTypeRoot   = "ROOT"
	NodeTypeBranch = "BRANCH"
)

// Node is a tale's position marker in the topology store
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Edge is a directed continuation relationship carrying a vote tally
type Edge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Votes    int    `json:"votes"`
}

// ChildEdge is a child node paired with its incoming edge's vote count
type ChildEdge struct {
	ID    string `json:"id"`
	Votes int    `json:"votes"`
}

// TopologyService owns the tree-shape half of the story graph: Tale nodes
// tagged ROOT/BRANCH and LEADS_TO edges with a votes counter. It knows
// nothing about content; the content store is joined by shared tale ID.
type TopologyService struct {
	client *Client
	logger ectologger.Logger
}

// NewTopologyService creates a new topology service
func NewTopologyService(client *Client, logger ectologger.Logger) *TopologyService {
	return &TopologyService{
		client: client,
		logger: logger,
	}
}

// CreateRoot creates a ROOT node for a new story tree
func (s *TopologyService) CreateRoot(ctx context.Context, taleID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.CreateRoot")
	defer span.End()

	cypher := `
		CREATE (t:Tale {id: $id, type: 'ROOT'})
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": taleID})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("tale_id", taleID).Error("Failed to create root node")
		return fmt.Errorf("failed to create root node: %w", err)
	}

	return nil
}

// CreateBranch creates a BRANCH node under parentID with a zero-vote incoming
// edge. Returns ErrParentNotFound when the parent node does not exist.
func (s *TopologyService) CreateBranch(ctx context.Context, parentID string, childID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.CreateBranch")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"parent_id": parentID,
		"child_id":  childID,
	})

	cypher := `
		MATCH (p:Tale {id: $parent_id})
		CREATE (c:Tale {id: $child_id, type: 'BRANCH'})
		CREATE (p)-[:LEADS_TO {votes: 0}]->(c)
		RETURN c.id AS id
	`

	created, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"parent_id": parentID,
			"child_id":  childID,
		})
		if err != nil {
			return nil, err
		}
		return result.Next(ctx), nil
	})

	if err != nil {
		log.WithError(err).Error("Failed to create branch node")
		return fmt.Errorf("failed to create branch node: %w", err)
	}

	if ok, _ := created.(bool); !ok {
		return ErrParentNotFound
	}

	log.Debug("Created branch node")
	return nil
}

// GetNode retrieves a node by tale ID. Returns nil when absent.
func (s *TopologyService) GetNode(ctx context.Context, taleID string) (*Node, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.GetNode")
	defer span.End()

	cypher := `
		MATCH (t:Tale {id: $id})
		RETURN t.id AS id, t.type AS type
		LIMIT 1
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": taleID})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, nil
		}
		record := result.Record()
		id, _ := record.Get("id")
		nodeType, _ := record.Get("type")
		return &Node{ID: id.(string), Type: nodeType.(string)}, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	if result == nil {
		return nil, nil
	}
	return result.(*Node), nil
}

// ResolveRoot walks the incoming-edge chain from taleID to its tree's ROOT
// node and returns that node's ID. The walk is a single unbounded-depth path
// query, not a hop-at-a-time loop from application code. A ROOT node resolves
// to itself. Returns "" when the node is absent or the chain is broken.
func (s *TopologyService) ResolveRoot(ctx context.Context, taleID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.ResolveRoot")
	defer span.End()

	node, err := s.GetNode(ctx, taleID)
	if err != nil {
		return "", err
	}
	if node == nil {
		return "", nil
	}
	if node.Type == NodeTypeRoot {
		return node.ID, nil
	}

	cypher := `
		MATCH (root:Tale {type: 'ROOT'})-[:LEADS_TO*]->(t:Tale {id: $id})
		RETURN root.id AS id
		LIMIT 1
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": taleID})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return "", nil
		}
		record := result.Record()
		id, _ := record.Get("id")
		return id.(string), nil
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("tale_id", taleID).Error("Failed to resolve root")
		return "", fmt.Errorf("failed to resolve root: %w", err)
	}

	return result.(string), nil
}

// IncrementEdgeVotes bumps the vote counter on the edge whose target is
// taleID. The increment happens storage-side so concurrent votes cannot lose
// updates. Voting on a root (no incoming edge) is a no-op.
func (s *TopologyService) IncrementEdgeVotes(ctx context.Context, taleID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.IncrementEdgeVotes")
	defer span.End()

	cypher := `
		MATCH ()-[r:LEADS_TO]->(t:Tale {id: $id})
		SET r.votes = r.votes + 1
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": taleID})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("tale_id", taleID).Error("Failed to increment edge votes")
		return fmt.Errorf("failed to increment edge votes: %w", err)
	}

	return nil
}

// CountChildren returns the number of outgoing edges from taleID
func (s *TopologyService) CountChildren(ctx context.Context, taleID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.CountChildren")
	defer span.End()

	cypher := `
		MATCH (t:Tale {id: $id})-[:LEADS_TO]->(child:Tale)
		RETURN count(child) AS count
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": taleID})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return int64(0), nil
		}
		count, _ := result.Record().Get("count")
		return count.(int64), nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count children: %w", err)
	}

	return result.(int64), nil
}

// Children returns one page of taleID's children with their edge vote counts,
// ordered by votes descending. Ordering and pagination happen in the store.
func (s *TopologyService) Children(ctx context.Context, taleID string, skip int, limit int) ([]ChildEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.Children")
	defer span.End()

	cypher := `
		MATCH (t:Tale {id: $id})-[r:LEADS_TO]->(child:Tale)
		RETURN child.id AS id, r.votes AS votes
		ORDER BY r.votes DESC
		SKIP $skip
		LIMIT $limit
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":    taleID,
			"skip":  skip,
			"limit": limit,
		})
		if err != nil {
			return nil, err
		}

		children := make([]ChildEdge, 0)
		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("id")
			votes, _ := record.Get("votes")
			children = append(children, ChildEdge{
				ID:    id.(string),
				Votes: int(votes.(int64)),
			})
		}
		return children, nil
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("tale_id", taleID).Error("Failed to list children")
		return nil, fmt.Errorf("failed to list children: %w", err)
	}

	return result.([]ChildEdge), nil
}

// RootIDs returns the IDs of every ROOT node. Soft-delete filtering is the
// content store's job; its count may legitimately be lower.
func (s *TopologyService) RootIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.RootIDs")
	defer span.End()

	cypher := `
		MATCH (t:Tale {type: 'ROOT'})
		RETURN t.id AS id
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0)
		for result.Next(ctx) {
			id, _ := result.Record().Get("id")
			ids = append(ids, id.(string))
		}
		return ids, nil
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list root ids")
		return nil, fmt.Errorf("failed to list root ids: %w", err)
	}

	return result.([]string), nil
}

// Descendants returns every node reachable from rootID, the root included
// (depth 0), via an unbounded-depth downward traversal.
func (s *TopologyService) Descendants(ctx context.Context, rootID string) ([]Node, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.Descendants")
	defer span.End()

	cypher := `
		MATCH (root:Tale {id: $id})-[:LEADS_TO*0..]->(d:Tale)
		RETURN DISTINCT d.id AS id, d.type AS type
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": rootID})
		if err != nil {
			return nil, err
		}

		nodes := make([]Node, 0)
		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("id")
			nodeType, _ := record.Get("type")
			nodes = append(nodes, Node{ID: id.(string), Type: nodeType.(string)})
		}
		return nodes, nil
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("root_id", rootID).Error("Failed to list descendants")
		return nil, fmt.Errorf("failed to list descendants: %w", err)
	}

	return result.([]Node), nil
}

// EdgesWithin returns every edge whose endpoints are both in ids
func (s *TopologyService) EdgesWithin(ctx context.Context, ids []string) ([]Edge, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.EdgesWithin")
	defer span.End()

	if len(ids) == 0 {
		return []Edge{}, nil
	}

	cypher := `
		MATCH (source:Tale)-[r:LEADS_TO]->(target:Tale)
		WHERE source.id IN $ids AND target.id IN $ids
		RETURN source.id AS source_id, target.id AS target_id, r.votes AS votes
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}

		edges := make([]Edge, 0)
		for result.Next(ctx) {
			record := result.Record()
			sourceID, _ := record.Get("source_id")
			targetID, _ := record.Get("target_id")
			votes, _ := record.Get("votes")
			edges = append(edges, Edge{
				SourceID: sourceID.(string),
				TargetID: targetID.(string),
				Votes:    int(votes.(int64)),
			})
		}
		return edges, nil
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list tree edges")
		return nil, fmt.Errorf("failed to list tree edges: %w", err)
	}

	return result.([]Edge), nil
}

// NodeTypes returns the type tag for each of the given tale IDs. Absent
// nodes are omitted from the result.
func (s *TopologyService) NodeTypes(ctx context.Context, ids []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.NodeTypes")
	defer span.End()

	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	cypher := `
		MATCH (t:Tale)
		WHERE t.id IN $ids
		RETURN t.id AS id, t.type AS type
	`

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}

		types := make(map[string]string)
		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("id")
			nodeType, _ := record.Get("type")
			types[id.(string)] = nodeType.(string)
		}
		return types, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get node types: %w", err)
	}

	return result.(map[string]string), nil
}

// DetachDelete removes taleID's node and its incoming edge. Only called for
// leaves; tombstoned tales keep their node so descendants stay reachable.
func (s *TopologyService) DetachDelete(ctx context.Context, taleID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.TopologyService.DetachDelete")
	defer span.End()

	cypher := `
		MATCH (t:Tale {id: $id})
		DETACH DELETE t
	`

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"id": taleID})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("tale_id", taleID).Error("Failed to delete node")
		return fmt.Errorf("failed to delete node: %w", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"tale_id": taleID}).Info("Deleted topology node")
	return nil
}
