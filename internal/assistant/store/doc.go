// Package store 提供学习助手的向量索引存储层。
//
// 该包定义了向量索引的接口抽象和 Milvus 实现，
// 支持语料条目的批量覆盖写入、按类型过滤的相似度检索和统计。
package store
