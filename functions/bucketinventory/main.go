// Command bucketinventory is the bundled operational task, deployed as
// a function. The task body lives in internal/opstask so `optask
// test-local` runs the identical code path under the same role.
package main

import (
	"context"
	"encoding/json"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"

	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/s3"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/adapters/aws/sts"
	"github.com/martijnvandongen/operational-tasks-lambda/internal/opstask"
)

// handler ignores the event payload; the schedule carries no input.
func handler(ctx context.Context, _ json.RawMessage) (*opstask.Inventory, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	ctx = log.Logger.WithContext(ctx)
	return opstask.Run(ctx, s3.NewRepository(cfg), sts.NewRepository(cfg))
}

func main() {
	awslambda.Start(handler)
}
