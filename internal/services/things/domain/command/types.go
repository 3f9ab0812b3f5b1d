package command

import "github.com/louisbranch/twinworks/internal/services/things/domain/resource"

// Type identifies the command type string.
type Type string

// Category groups command types by their effect on the thing.
type Category string

const (
	CategoryCreate  Category = "create"
	CategoryModify  Category = "modify"
	CategoryMerge   Category = "merge"
	CategoryDelete  Category = "delete"
	CategoryQuery   Category = "query"
	CategoryMigrate Category = "migrate"
)

// Mutates reports whether commands of the category change the thing.
func (c Category) Mutates() bool {
	return c != CategoryQuery
}

const (
	TypeCreateThing             Type = "things.commands:createThing"
	TypeModifyThing             Type = "things.commands:modifyThing"
	TypeMergeThing              Type = "things.commands:mergeThing"
	TypeDeleteThing             Type = "things.commands:deleteThing"
	TypeRetrieveThing           Type = "things.commands:retrieveThing"
	TypeSudoRetrieveThing       Type = "things.sudo.commands:sudoRetrieveThing"
	TypeMigrateThingDefinition  Type = "things.commands:migrateThingDefinition"
	TypeModifyPolicyID          Type = "things.commands:modifyPolicyId"
	TypeRetrievePolicyID        Type = "things.commands:retrievePolicyId"
	TypeModifyDefinition        Type = "things.commands:modifyThingDefinition"
	TypeDeleteDefinition        Type = "things.commands:deleteThingDefinition"
	TypeRetrieveDefinition      Type = "things.commands:retrieveThingDefinition"
	TypeModifyAttributes        Type = "things.commands:modifyAttributes"
	TypeDeleteAttributes        Type = "things.commands:deleteAttributes"
	TypeRetrieveAttributes      Type = "things.commands:retrieveAttributes"
	TypeModifyAttribute         Type = "things.commands:modifyAttribute"
	TypeDeleteAttribute         Type = "things.commands:deleteAttribute"
	TypeRetrieveAttribute       Type = "things.commands:retrieveAttribute"
	TypeModifyFeatures          Type = "things.commands:modifyFeatures"
	TypeDeleteFeatures          Type = "things.commands:deleteFeatures"
	TypeRetrieveFeatures        Type = "things.commands:retrieveFeatures"
	TypeModifyFeature           Type = "things.commands:modifyFeature"
	TypeDeleteFeature           Type = "things.commands:deleteFeature"
	TypeRetrieveFeature         Type = "things.commands:retrieveFeature"
	TypeModifyFeatureDefinition Type = "things.commands:modifyFeatureDefinition"
	TypeDeleteFeatureDefinition Type = "things.commands:deleteFeatureDefinition"
	TypeRetrieveFeatureDef      Type = "things.commands:retrieveFeatureDefinition"
	TypeModifyFeatureProperties Type = "things.commands:modifyFeatureProperties"
	TypeDeleteFeatureProperties Type = "things.commands:deleteFeatureProperties"
	TypeRetrieveFeatureProps    Type = "things.commands:retrieveFeatureProperties"
	TypeModifyFeatureProperty   Type = "things.commands:modifyFeatureProperty"
	TypeDeleteFeatureProperty   Type = "things.commands:deleteFeatureProperty"
	TypeRetrieveFeatureProperty Type = "things.commands:retrieveFeatureProperty"
	TypeModifyDesiredProperties Type = "things.commands:modifyFeatureDesiredProperties"
	TypeDeleteDesiredProperties Type = "things.commands:deleteFeatureDesiredProperties"
	TypeRetrieveDesiredProps    Type = "things.commands:retrieveFeatureDesiredProperties"
	TypeModifyDesiredProperty   Type = "things.commands:modifyFeatureDesiredProperty"
	TypeDeleteDesiredProperty   Type = "things.commands:deleteFeatureDesiredProperty"
	TypeRetrieveDesiredProperty Type = "things.commands:retrieveFeatureDesiredProperty"
)

// resourceCommands lists the modify/delete/retrieve command triple of each
// sub-resource kind. An empty type means the operation does not exist.
var resourceCommands = []struct {
	kind                     resource.Kind
	modify, delete, retrieve Type
}{
	{resource.KindPolicyID, TypeModifyPolicyID, "", TypeRetrievePolicyID},
	{resource.KindDefinition, TypeModifyDefinition, TypeDeleteDefinition, TypeRetrieveDefinition},
	{resource.KindAttributes, TypeModifyAttributes, TypeDeleteAttributes, TypeRetrieveAttributes},
	{resource.KindAttribute, TypeModifyAttribute, TypeDeleteAttribute, TypeRetrieveAttribute},
	{resource.KindFeatures, TypeModifyFeatures, TypeDeleteFeatures, TypeRetrieveFeatures},
	{resource.KindFeature, TypeModifyFeature, TypeDeleteFeature, TypeRetrieveFeature},
	{resource.KindFeatureDefinition, TypeModifyFeatureDefinition, TypeDeleteFeatureDefinition, TypeRetrieveFeatureDef},
	{resource.KindFeatureProperties, TypeModifyFeatureProperties, TypeDeleteFeatureProperties, TypeRetrieveFeatureProps},
	{resource.KindFeatureProperty, TypeModifyFeatureProperty, TypeDeleteFeatureProperty, TypeRetrieveFeatureProperty},
	{resource.KindFeatureDesiredProperties, TypeModifyDesiredProperties, TypeDeleteDesiredProperties, TypeRetrieveDesiredProps},
	{resource.KindFeatureDesiredProperty, TypeModifyDesiredProperty, TypeDeleteDesiredProperty, TypeRetrieveDesiredProperty},
}
