package database

import (
	"context"
	"os"

	"github.com/go-errors/errors"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

// Connector is a generic handle to a database connection.
type Connector interface {
	Ping() error
	Disconnect() error
	GetName() string
	GetDatabaseName() string
	GetDriver() any
}

type MongoConnectorOpts struct {
	options.ClientOptions
	Name     string
	Database string
}

// MongoConnector associates a mongo client with a database name. Connection
// pooling, retries and authentication are owned by the driver.
type MongoConnector struct {
	ctx          context.Context
	client       *mongo.Client
	options      *MongoConnectorOpts
	indexManager *MongoIndexManager
}

// NewMongoConnector creates a MongoDB connector with the provided options and
// checks the connection.
func NewMongoConnector(opts *MongoConnectorOpts) (*MongoConnector, error) {
	connector := &MongoConnector{
		ctx:     context.Background(),
		options: opts,
	}

	if err := connector.connect(); err != nil {
		return nil, err
	}

	if err := connector.Ping(); err != nil {
		return nil, err
	}

	return connector, nil
}

// NewDefaultMongoConnector creates a connector from the MONGO_URI and
// MONGO_DATABASE environment variables, defaulting to a local server.
func NewDefaultMongoConnector() (*MongoConnector, error) {
	uri := getEnv("MONGO_URI", "mongodb://localhost:27017")

	clientOptions := (&options.ClientOptions{}).ApplyURI(uri)

	conn, err := connstring.Parse(uri)
	if err != nil {
		return nil, err
	}

	dbName := conn.Database
	if dbName == "" {
		dbName = "test"
	}

	opts := MongoConnectorOpts{
		ClientOptions: *clientOptions,
		Name:          "mongodb",
		Database:      getEnv("MONGO_DATABASE", dbName),
	}

	return NewMongoConnector(&opts)
}

func (receiver *MongoConnector) connect() error {
	opts := receiver.options.ClientOptions

	client, err := mongo.Connect(&opts)
	if err != nil {
		return err
	}

	receiver.client = client
	receiver.indexManager = NewMongoIndexManager(receiver)
	return nil
}

func (receiver *MongoConnector) Ping() error {
	if receiver.client == nil {
		return errors.New("mongo client not initialized")
	}
	return receiver.client.Ping(receiver.ctx, nil)
}

func (receiver *MongoConnector) Disconnect() error {
	if receiver.client == nil {
		return errors.New("mongo client not initialized")
	}
	return receiver.client.Disconnect(receiver.ctx)
}

// GetDriver returns the underlying MongoDB client.
func (receiver *MongoConnector) GetDriver() any {
	return receiver.client
}

func (receiver *MongoConnector) GetName() string {
	return receiver.options.Name
}

func (receiver *MongoConnector) GetDatabaseName() string {
	return receiver.options.Database
}

func (receiver *MongoConnector) GetOptions() MongoConnectorOpts {
	return *receiver.options
}

// Database returns the database handle this connector is bound to.
func (receiver *MongoConnector) Database() *mongo.Database {
	return receiver.client.Database(receiver.options.Database)
}

// GetIndexManager returns the index manager for this connector.
func (receiver *MongoConnector) GetIndexManager() *MongoIndexManager {
	return receiver.indexManager
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
