// Package s3 stores partial-result archives in Amazon S3 and records step
// commits in DynamoDB.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("jobs/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	log := s3.NewDDBCommitLog(dynamodb.NewFromConfig(cfg), "stepwise-commits")
//
// # Features
//
//   - Range reads for partial fetches
//   - Single-request puts with CRC32C for small archives, managed multipart
//     uploads above the part size
//   - Automatic pagination for listing
//   - Conditional writes for exactly-once step commits
package s3
