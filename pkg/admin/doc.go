// Package admin is a client for the document database admin API.
//
// A Client exposes one method per remote procedure of the
// google.firestore.admin.v1.FirestoreAdmin service together with the
// google.longrunning.Operations and google.cloud.location.Locations mixins.
// Calls travel over gRPC with a JSON codec or, as a fallback, over the REST
// binding of the same service.
//
// Methods that start server-side work return an Operation handle:
//
//	op, err := client.CreateIndex(ctx, &proto.CreateIndexRequest{
//		Parent: resource.CollectionGroupPath("my-project", "(default)", "cities"),
//		Index:  &proto.Index{QueryScope: proto.QueryScopeCollection, Fields: fields},
//	})
//	if err != nil {
//		return err
//	}
//	index, err := op.Wait(ctx)
//
// An operation started elsewhere can be resumed by name with the matching
// ...Operation method, e.g. client.CreateIndexOperation(name).
package admin
