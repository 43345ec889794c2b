package mongo

import (
	"context"
	"fmt"
	"strings"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

type client struct {
	client   *mongodriver.Client
	database *mongodriver.Database
	conf     Config
	log      *zap.Logger
}

// newClient creates the driver client without touching the network; the
// actual connection is validated by connect via Ping.
func newClient(log *zap.Logger, conf Config) (*client, error) {
	clientOptions := options.Client().
		ApplyURI(buildURI(conf)).
		SetMaxPoolSize(conf.MaxPoolSize).
		SetMinPoolSize(conf.MinPoolSize).
		SetMaxConnIdleTime(conf.MaxConnIdleTime).
		SetServerSelectionTimeout(conf.ServerSelectTimeout).
		SetMonitor(otelmongo.NewMonitor())

	c, err := mongodriver.Connect(context.Background(), clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	return &client{
		client:   c,
		database: c.Database(conf.Database),
		conf:     conf,
		log:      log,
	}, nil
}

func (c *client) connect(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.conf.ConnectTimeout)
	defer cancel()

	if err := c.client.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("failed to ping mongo: %w", err)
	}

	c.log.Info("connected to mongo",
		zap.String("database", c.conf.Database),
		zap.Uint64("max_pool_size", c.conf.MaxPoolSize))
	return nil
}

func (c *client) disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func buildURI(conf Config) string {
	if conf.ConnectionString != "" {
		return conf.ConnectionString
	}

	auth := ""
	if conf.Username != "" {
		auth = fmt.Sprintf("%s:%s@", conf.Username, conf.Password)
	}

	uri := fmt.Sprintf("mongodb://%s%s:%d/%s", auth, conf.Host, conf.Port, conf.Database)

	var params []string
	if conf.ReplicaSet != "" {
		params = append(params, "replicaSet="+conf.ReplicaSet)
	}
	if conf.DirectConnection {
		params = append(params, "directConnection=true")
	}
	if len(params) > 0 {
		uri += "?" + strings.Join(params, "&")
	}
	return uri
}
