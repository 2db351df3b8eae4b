package interactive

import "context"

// TransactionService settles spark transactions opened by participant
// input.
type TransactionService struct {
	c *Client
}

// Capture charges a transaction by id. Capturing a transaction twice, or
// after it expired, is a service error.
func (s *TransactionService) Capture(ctx context.Context, transactionID string) error {
	params := struct {
		TransactionID string `json:"transactionID"`
	}{TransactionID: transactionID}
	return s.c.call(ctx, methodCapture, params, nil)
}
