package bench

import "context"

// Session endpoints. The gateway hands out tasks, tracks per-task lifecycle
// and evaluates the session once everything is submitted.
const (
	EndpointWhoami       = "/whoami"
	EndpointTaskList     = "/tasks/list"
	EndpointTaskStart    = "/tasks/start"
	EndpointTaskComplete = "/tasks/complete"
	EndpointScore        = "/score"
)

// Whoami fetches the current actor context.
func (c *Client) Whoami(ctx context.Context) (Identity, error) {
	var identity Identity
	if err := c.Do(ctx, EndpointWhoami, struct{}{}, &identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// ListTasks returns the session's tasks in benchmark order.
func (c *Client) ListTasks(ctx context.Context) ([]TaskInfo, error) {
	var out struct {
		Tasks []TaskInfo `json:"tasks"`
	}
	if err := c.Do(ctx, EndpointTaskList, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// StartTask marks a task as in progress.
func (c *Client) StartTask(ctx context.Context, taskID string) error {
	return c.Do(ctx, EndpointTaskStart, map[string]string{"task_id": taskID}, nil)
}

// CompleteTask submits a task as finished, whatever its outcome.
func (c *Client) CompleteTask(ctx context.Context, taskID string) error {
	return c.Do(ctx, EndpointTaskComplete, map[string]string{"task_id": taskID}, nil)
}

// SessionScore fetches the evaluation for the whole session.
func (c *Client) SessionScore(ctx context.Context) (Score, error) {
	var score Score
	if err := c.Do(ctx, EndpointScore, struct{}{}, &score); err != nil {
		return Score{}, err
	}
	return score, nil
}
