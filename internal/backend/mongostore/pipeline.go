package mongostore

import (
	"fmt"
	"strconv"

	"cosyq/internal/backend"
	"cosyq/internal/query"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Filter renders a QuerySpec as a MongoDB filter document.
func Filter(q query.QuerySpec) bson.D {
	filter := bson.D{}
	for _, c := range q {
		var value any
		switch c.Rule.Kind {
		case query.Regex:
			value = bson.D{{Key: "$regex", Value: c.Rule.Value}}
		case query.OneOf:
			value = bson.D{{Key: "$in", Value: c.Rule.Values}}
		default:
			value = c.Rule.Value
		}
		filter = append(filter, bson.E{Key: c.Key, Value: value})
	}
	return filter
}

// GroupPipeline filters by q and counts documents per distinct tuple of keys.
// Group ids use positional aliases since field names in $group may not contain
// dots, and keys such as "ann.key" usually do.
func GroupPipeline(q query.QuerySpec, keys []string) mongo.Pipeline {
	id := bson.D{}
	for i, k := range keys {
		id = append(id, bson.E{Key: groupAlias(i), Value: "$" + k})
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: Filter(q)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

type groupDoc struct {
	ID    bson.M `bson:"_id"`
	Count int64  `bson:"count"`
}

func groupAlias(i int) string {
	return "k" + strconv.Itoa(i)
}

func (d groupDoc) row(keys []string) backend.GroupRow {
	values := make([]string, len(keys))
	for i := range keys {
		if v, ok := d.ID[groupAlias(i)]; ok && v != nil {
			values[i] = fmt.Sprint(v)
		}
	}
	return backend.GroupRow{Values: values, Count: d.Count}
}
