package database

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/labstack/gommon/log"
)

// Datasource keeps the registered connectors, models and repositories of an
// application. Models are bound to a connector by name, repositories are
// registered once per model.
type Datasource struct {
	connectors           map[string]Connector
	repositories         map[string]any
	models               map[string]IModel
	connectorByModelName map[string]Connector
}

func (receiver *Datasource) AddConnector(connector Connector) error {
	if receiver == nil {
		return errors.New("datasource is nil")
	}

	if receiver.connectors == nil {
		receiver.connectors = make(map[string]Connector)
	}

	receiver.connectors[connector.GetName()] = connector
	return nil
}

func (receiver *Datasource) Destroy() {
	for _, connector := range receiver.connectors {
		if connector != nil {
			_ = connector.Disconnect()
		}
	}
}

func (receiver *Datasource) RegisterModel(model IModel) error {
	if receiver == nil {
		return errors.New("datasource is nil")
	}

	connectorName := model.GetConnectorName()
	modelName := model.GetModelName()
	connector, err := receiver.GetConnector(connectorName)
	if err != nil {
		return err
	}

	if receiver.models == nil {
		receiver.models = make(map[string]IModel)
	}

	if receiver.connectorByModelName == nil {
		receiver.connectorByModelName = make(map[string]Connector)
	}

	if receiver.connectorByModelName[modelName] != nil {
		return errors.Errorf("the model %s is already registered with connector %s", modelName, receiver.connectorByModelName[modelName].GetName())
	}

	receiver.models[modelName] = model
	receiver.connectorByModelName[modelName] = connector
	return nil
}

func (receiver *Datasource) GetModelConnector(model IModel) (Connector, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	connector, ok := receiver.connectorByModelName[model.GetModelName()]
	if !ok {
		return nil, errors.Errorf("the model %s is not registered", model.GetModelName())
	}

	return connector, nil
}

func (receiver *Datasource) GetConnector(name string) (Connector, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	connector, ok := receiver.connectors[name]
	if !ok {
		return nil, errors.Errorf("the connector %s is not registered", name)
	}

	return connector, nil
}

func (receiver *Datasource) GetModel(modelName string) (IModel, error) {
	if receiver == nil {
		return nil, errors.New("datasource is nil")
	}

	model, ok := receiver.models[modelName]
	if !ok {
		return nil, errors.Errorf("the model %s is not registered", modelName)
	}

	return model, nil
}

// SyncIndexes reconciles the declared indexes of every registered model with
// its live collection. It should be called once on startup, after all models
// are registered. A failure aborts the sweep, the collections synchronized so
// far keep their new state.
func (receiver *Datasource) SyncIndexes(ctx context.Context) error {
	if receiver == nil {
		return errors.New("datasource is nil")
	}

	for modelName, model := range receiver.models {
		if err := receiver.SyncIndexesForModel(ctx, model); err != nil {
			return errors.Errorf("failed to sync indexes for model %s: %v", modelName, err)
		}
	}

	return nil
}

// SyncIndexesForModel reconciles the declared indexes of a single model.
// Models bound to a non-mongo connector or without declared indexes are
// skipped.
func (receiver *Datasource) SyncIndexesForModel(ctx context.Context, model IModel) error {
	if receiver == nil {
		return errors.New("datasource is nil")
	}

	connector, err := receiver.GetModelConnector(model)
	if err != nil {
		return err
	}

	mongoConnector, ok := connector.(*MongoConnector)
	if !ok {
		return nil
	}

	indexManager := mongoConnector.GetIndexManager()
	if indexManager == nil {
		return nil
	}

	log.Debugf("syncing indexes for model %s", model.GetModelName())
	return indexManager.SyncModel(ctx, model)
}

func RegisterDatasourceRepository[T IModel](ds *Datasource, model T, repository Repository[T]) error {
	if ds == nil || repository == nil {
		return errors.New("datasource or repository cannot be nil")
	}

	modelName := model.GetModelName()

	if ds.repositories == nil {
		ds.repositories = make(map[string]any)
	}

	if _, exists := ds.repositories[modelName]; exists {
		return errors.Errorf("a repository is already registered for model %s", modelName)
	}

	ds.repositories[modelName] = repository
	return nil
}

func GetDatasourceModelRepository[T IModel](datasource *Datasource, model T) (Repository[T], error) {
	if datasource == nil {
		return nil, errors.New("datasource is nil")
	}

	repository, ok := datasource.repositories[model.GetModelName()]
	if !ok {
		return nil, errors.Errorf("the model %s is not registered", model.GetModelName())
	}

	if repo, ok := repository.(Repository[T]); ok {
		return repo, nil
	}

	return nil, errors.Errorf("the repository for model %s is not of the expected type", model.GetModelName())
}
